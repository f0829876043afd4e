package query

import "strings"

// ParametersPlaceholder marks where compiled filters go in a request template
const ParametersPlaceholder = "<parameters>"

// URLBuilder builds cluster-scoped request paths
type URLBuilder struct {
	apiPrefix string
	cluster   string
	compiler  *Compiler
}

// NewURLBuilder creates a URLBuilder. A nil compiler means the package default.
func NewURLBuilder(apiPrefix, cluster string, compiler *Compiler) *URLBuilder {
	if compiler == nil {
		compiler = defaultCompiler
	}
	return &URLBuilder{
		apiPrefix: strings.TrimSuffix(apiPrefix, "/"),
		cluster:   cluster,
		compiler:  compiler,
	}
}

// Compiler returns the compiler used for templates
func (b *URLBuilder) Compiler() *Compiler {
	return b.compiler
}

// Prefix returns apiPrefix/clusters/<cluster>
func (b *URLBuilder) Prefix() string {
	return b.apiPrefix + "/clusters/" + b.cluster
}

// Cluster returns a path below the cluster prefix
func (b *URLBuilder) Cluster(path string) string {
	return b.Prefix() + path
}

// API returns a path below the API prefix that is not cluster scoped
func (b *URLBuilder) API(path string) string {
	return b.apiPrefix + path
}

// Complex compiles filters into the <parameters> placeholder of template and
// prefixes the cluster path. A non-empty parameter string gets a trailing "&"
// so the template can continue with further fixed parameters.
func (b *URLBuilder) Complex(template string, filters []Filter) (string, error) {
	params, err := b.compiler.Compile(filters)
	if err != nil {
		return "", err
	}
	if params != "" {
		params += "&"
	}
	return b.Prefix() + strings.Replace(template, ParametersPlaceholder, params, 1), nil
}

// Append compiles filters and appends them to url with a leading "&".
// Nothing is appended when the filters render to an empty string.
func (b *URLBuilder) Append(url string, filters []Filter) (string, error) {
	params, err := b.compiler.Compile(filters)
	if err != nil {
		return "", err
	}
	if params == "" {
		return url, nil
	}
	return url + "&" + params, nil
}

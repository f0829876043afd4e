// Package query renders declarative filter specs into the Ambari REST query
// string format.
//
// A filter is one of a closed set of variants (Equal, Less, More, Match,
// Multiple, Sort, Custom, Combo). Compile renders an ordered slice of
// filters into fragments joined with "&":
//
//	key=value            Equal with a scalar value
//	key.in(v1,v2)        Equal with a list value, or Multiple
//	key<value, key>value Less, More
//	key.matches(v)       Match with a scalar value
//	(key.matches(a)|key.matches(b))
//	                     Match with a list value
//	sortBy=key.asc       Sort
//
// Custom filters carry a template with positional placeholders ({0}, {1}, ...)
// and Combo filters are rendered by an injected ComboCompiler.
//
// Malformed filters are rejected with a *CompileError that names the
// offending filter instead of producing a request the server cannot parse.
// When several Sort filters are present only the last one is rendered.
//
// URLBuilder places compiled filters into cluster-scoped request templates
// and ConditionalFields derives the optional field list of the service
// metrics request from an explicit FieldContext.
package query

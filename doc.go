// Package quacksql turns a directory of .sql files into callable queries against an embedded DuckDB database. Load one or more modules, connect once, then invoke queries by file name: each call returns a lazy Result that executes on the first fetch and serves rows, a single row, bounded batches, a column-major Frame or plain iteration from that one execution. Positional args bind to ? / $1 placeholders, named args (sql.Named, P, StructParams) bind to $name.
package quacksql

// Package querysql compiles queryir journal queries to parameterized
// SQLite.
//
// All queries include ORDER BY engine_id, seq. All values are bound as
// parameters. Fact arguments are read from the canonical JSON payload with
// json_extract.
package querysql

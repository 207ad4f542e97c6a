// Package mssql executes T-SQL batches against a SQL Server instance.
package mssql

import "context"

// QueryResult carries the engine client's merged output and exit status.
type QueryResult struct {
	Output   string
	ExitCode int
}

// QueryRunner is the capability interface the restore pipeline depends on.
// Exactly one implementation exists per deployment target; today that is
// the sqlcmd client. Err is non-nil only when the client could not be
// invoked at all; engine-level failures surface through ExitCode and Output.
type QueryRunner interface {
	Run(ctx context.Context, query string) (QueryResult, error)
}

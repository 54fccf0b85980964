package sqlrunner

// ConnectError is returned when the database cannot be opened or reached.
type ConnectError struct {
	Parent error
}

// QueryError is returned when a query fails.
type QueryError struct {
	Parent error
}

func NewConnectError(err error) error {
	return ConnectError{Parent: err}
}

func NewQueryError(err error) error {
	return QueryError{Parent: err}
}

func (e ConnectError) Error() string {
	return "connect error: " + e.Parent.Error()
}

func (e ConnectError) Unwrap() error {
	return e.Parent
}

func (e QueryError) Error() string {
	return "query error: " + e.Parent.Error()
}

func (e QueryError) Unwrap() error {
	return e.Parent
}

package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	StructuralError = 4
	TransformError  = 5
	LinkError       = 6
	PartialSuccess  = 7
)

package app

// CorrectionOperation tracks a CLI operation that may mutate state.
// Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the database).
type CorrectionOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewCorrectionOperation creates a new in-memory operation record.
func NewCorrectionOperation(operation, parameters string) *CorrectionOperation {
	return &CorrectionOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *CorrectionOperation) Persisted() bool {
	return op.ID != 0
}

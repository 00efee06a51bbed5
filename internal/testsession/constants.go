package testsession

// HTTP status code constants.
const (
	StatusOK        = 200
	StatusCreated   = 201
	StatusNoContent = 204
)

// Snapshot generation constants.
const (
	squadSize        = 15
	marketSize       = 40
	teamCount        = 20
	lookaheadWeeks   = 5
	defaultBankTenth = 25
)

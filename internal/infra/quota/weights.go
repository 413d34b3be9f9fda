package quota

// Category identifies which remote API a call is charged against.
type Category string

const (
	// Drive calls are counted per 100s window and feed the daily weighted budget.
	Drive Category = "drive"
	// Sheets calls are counted per 60s window only.
	Sheets Category = "sheets"
)

// OpKind is the kind of remote operation, used to look up its quota cost.
type OpKind string

const (
	OpRead    OpKind = "read"
	OpWrite   OpKind = "write"
	OpCreate  OpKind = "create"
	OpCopy    OpKind = "copy"
	OpConvert OpKind = "convert"
	OpDelete  OpKind = "delete"
	// OpQuery is a search; on Drive it also counts against the query ceiling.
	OpQuery OpKind = "query"
)

// driveWeights is the quota unit cost of Drive operations.
var driveWeights = map[OpKind]int{
	OpRead:    1,
	OpWrite:   10,
	OpCreate:  100,
	OpCopy:    100,
	OpConvert: 200,
	OpDelete:  100,
}

// Weight returns the quota unit cost of a call. Unknown kinds cost 1.
func Weight(cat Category, kind OpKind) int {
	if cat != Drive {
		return 1
	}
	if w, ok := driveWeights[kind]; ok {
		return w
	}
	return 1
}

// Weighted reports whether calls of cat are charged to the daily budget.
func Weighted(cat Category) bool {
	return cat == Drive
}

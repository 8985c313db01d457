package redis

var (
	EncodeVector    = encodeVector
	DecodeVector    = decodeVector
	EscapeTag       = escapeTag
	BuildFilterExpr = buildFilterExpr
	NormalizeID     = normalizeID
	MemoryToFields  = memoryToFields
	FieldsToMemory  = fieldsToMemory
)

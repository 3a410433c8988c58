package chat

// Position classifies a message against its same-author neighbours so that
// consecutive lines from one author can be rendered as a group.
type Position string

const (
	PositionSingle Position = "single"
	PositionStart  Position = "start"
	PositionMiddle Position = "middle"
	PositionEnd    Position = "end"
)

// PositionOf computes the position of messages[i] in a newest-first list.
// The newer neighbour sits at i-1 and the older one at i+1; only immediate
// neighbours are considered.
func PositionOf(messages []Message, i int) Position {
	if i < 0 || i >= len(messages) {
		return PositionSingle
	}
	author := messages[i].Author
	newer := i > 0 && messages[i-1].Author == author
	older := i+1 < len(messages) && messages[i+1].Author == author

	switch {
	case newer && older:
		return PositionMiddle
	case newer:
		return PositionStart
	case older:
		return PositionEnd
	default:
		return PositionSingle
	}
}

// Positions computes PositionOf for every entry of a newest-first list.
func Positions(messages []Message) []Position {
	out := make([]Position, len(messages))
	for i := range messages {
		out[i] = PositionOf(messages, i)
	}
	return out
}

// WithPositions annotates a newest-first list.
func WithPositions(messages []Message) []PositionedMessage {
	out := make([]PositionedMessage, len(messages))
	for i, m := range messages {
		out[i] = PositionedMessage{Message: m, Position: PositionOf(messages, i)}
	}
	return out
}

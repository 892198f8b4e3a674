package conversation

import "github.com/ashureev/belai/internal/domain"

// messageLog is an append-only ordered log amended by message id.
type messageLog struct {
	msgs  []domain.Message
	index map[string]int
}

func newMessageLog() *messageLog {
	return &messageLog{index: make(map[string]int)}
}

func (l *messageLog) append(m domain.Message) {
	l.index[m.ID] = len(l.msgs)
	l.msgs = append(l.msgs, m)
}

// patch applies fn to the message with id and returns the amended copy.
func (l *messageLog) patch(id string, fn func(*domain.Message)) (domain.Message, bool) {
	i, ok := l.index[id]
	if !ok {
		return domain.Message{}, false
	}
	fn(&l.msgs[i])
	return l.msgs[i].Clone(), true
}

func (l *messageLog) get(id string) (domain.Message, bool) {
	i, ok := l.index[id]
	if !ok {
		return domain.Message{}, false
	}
	return l.msgs[i].Clone(), true
}

func (l *messageLog) snapshot() []domain.Message {
	out := make([]domain.Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = m.Clone()
	}
	return out
}

// lastText returns the text of the most recent message from sender.
func (l *messageLog) lastText(sender domain.Sender) *string {
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].Sender == sender {
			text := l.msgs[i].Text
			return &text
		}
	}
	return nil
}

func (l *messageLog) reset() {
	l.msgs = nil
	l.index = make(map[string]int)
}

func (l *messageLog) len() int {
	return len(l.msgs)
}

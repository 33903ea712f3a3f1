package domain

// Participant is one named seat in a room.
// No transport or lifecycle logic here.
type Participant struct {
	Name string
	Vote Vote
}

func NewParticipant(name string) *Participant {
	return &Participant{Name: name}
}

func (p *Participant) HasVoted() bool { return p.Vote.IsSet() }

package stress

// PayloadWords is the number of words of a [Payload].
const PayloadWords = 1000

// Payload is the value exchanged through the double buffer during a run.
// Every word carries the same sequence index, so a value mixing two
// different writes is detected by [Payload.Torn].
type Payload struct {
	Words [PayloadWords]uint64
}

// NewPayload returns a payload stamped with idx.
func NewPayload(idx uint64) Payload {
	p := Payload{}
	p.Stamp(idx)
	return p
}

// Stamp writes idx into every word.
func (p *Payload) Stamp(idx uint64) {
	for i := range p.Words {
		p.Words[i] = idx
	}
}

// Index returns the sequence index of the payload.
func (p *Payload) Index() uint64 {
	return p.Words[0]
}

// Torn states whether the words do not all carry the same index.
func (p *Payload) Torn() bool {
	idx := p.Words[0]
	for _, w := range p.Words[1:] {
		if w != idx {
			return true
		}
	}
	return false
}

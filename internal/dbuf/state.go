package dbuf

// state is the packed coordination word of a [Buffer].
//
// Layout (low byte only, the rest is always zero):
//
//	bit 7 = consumer busy
//	bit 6 = generator busy
//	bit 5 = should flip
//	bit 0 = active slot index
type state uint32

const (
	consumerBusyMask  state = 1 << 7
	generatorBusyMask state = 1 << 6
	shouldFlipMask    state = 1 << 5
	activeIdxMask     state = 1 << 0

	busyMask = consumerBusyMask | generatorBusyMask
)

func (s state) busy() bool       { return s&busyMask != 0 }
func (s state) shouldFlip() bool { return s&shouldFlipMask != 0 }

// active returns the index of the readable slot.
func (s state) active() int { return int(s & activeIdxMask) }

// inactive returns the index of the writable slot.
func (s state) inactive() int { return int((s & activeIdxMask) ^ 1) }

func (s state) set(mask state) state   { return s | mask }
func (s state) clear(mask state) state { return s &^ mask }

// flipped toggles the active index and drops the pending flip request.
func (s state) flipped() state { return (s ^ activeIdxMask) &^ shouldFlipMask }

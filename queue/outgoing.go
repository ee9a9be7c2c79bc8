package queue

// DefaultOutgoingCapacity bounds how many commands may be staged between
// two reconciliations.
const DefaultOutgoingCapacity = 256

// Outgoing stages commands generated by whichever player is active. It is a
// fixed-size ring; Push fails once it is full. It is not safe for concurrent
// use; the owning instance serializes access.
type Outgoing struct {
	data  []Command
	head  int
	tail  int
	count int
	seq   uint64
}

func NewOutgoing(capacity int) *Outgoing {
	if capacity < 1 {
		capacity = 1
	}
	return &Outgoing{data: make([]Command, capacity)}
}

// Push stages cmd and stamps it with a sequence number. It returns false if
// the ring is full.
func (o *Outgoing) Push(cmd Command) (Command, bool) {
	if o.count == len(o.data) {
		return cmd, false
	}
	o.seq++
	cmd.Seq = o.seq
	o.data[o.tail] = cmd
	o.tail = (o.tail + 1) % len(o.data)
	o.count++
	return cmd, true
}

// Drain returns the staged commands in FIFO order and empties the ring.
func (o *Outgoing) Drain() []Command {
	if o.count == 0 {
		return nil
	}
	out := make([]Command, o.count)
	for i := 0; i < o.count; i++ {
		out[i] = o.data[(o.head+i)%len(o.data)]
	}
	o.head, o.tail, o.count = 0, 0, 0
	return out
}

// Peek returns the staged commands in FIFO order without removing them.
func (o *Outgoing) Peek() []Command {
	out := make([]Command, o.count)
	for i := 0; i < o.count; i++ {
		out[i] = o.data[(o.head+i)%len(o.data)]
	}
	return out
}

// Restore replaces the ring contents with cmds, keeping their sequence
// numbers. Commands past capacity are dropped and counted.
func (o *Outgoing) Restore(cmds []Command, seq uint64) (dropped int) {
	o.head, o.tail, o.count = 0, 0, 0
	for _, cmd := range cmds {
		if o.count == len(o.data) {
			dropped++
			continue
		}
		o.data[o.tail] = cmd
		o.tail = (o.tail + 1) % len(o.data)
		o.count++
	}
	o.seq = seq
	return dropped
}

func (o *Outgoing) Len() int { return o.count }

// Seq returns the last sequence number handed out.
func (o *Outgoing) Seq() uint64 { return o.seq }

// SetSeq continues numbering after a restore.
func (o *Outgoing) SetSeq(seq uint64) { o.seq = seq }

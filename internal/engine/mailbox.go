package engine

const mailboxBuffer = 64

type Signal struct {
	Name    string
	Payload interface{}
}

type callResult struct {
	value interface{}
	err   error
}

type Call struct {
	Name    string
	Payload interface{}
	reply   chan callResult
}

// Reply answers the caller blocked in Engine.Call. It must be called
// exactly once.
func (c *Call) Reply(value interface{}, err error) {
	c.reply <- callResult{value: value, err: err}
}

// Mailbox is a process's inbound channel pair. Signals are one-way; calls
// carry a reply channel.
type Mailbox struct {
	signals chan Signal
	calls   chan *Call
}

func newMailbox() *Mailbox {
	return &Mailbox{
		signals: make(chan Signal, mailboxBuffer),
		calls:   make(chan *Call),
	}
}

func (m *Mailbox) Signals() <-chan Signal {
	return m.signals
}

func (m *Mailbox) Calls() <-chan *Call {
	return m.calls
}

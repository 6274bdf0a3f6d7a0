package coordinator

import (
	"github.com/joshvictor1024/mandelfarm/pkg/types"
	"github.com/joshvictor1024/mandelfarm/pkg/wire"
)

// delivery is one answered task on its way to the assembler.
type delivery struct {
	addr   string
	task   wire.Task
	result wire.Result
}

// M dispatchers send, 1 assembler receives
type resultQueue struct {
	cq *types.ControlledQueue[*delivery]
}

func newResultQueue() *resultQueue {
	return &resultQueue{
		cq: types.NewControlledQueue[*delivery](),
	}
}

// call once every dispatcher has returned
func (rq *resultQueue) close() {
	rq.cq.Close()
}

// return false if closed and not sent
func (rq *resultQueue) send(d *delivery) bool {
	return rq.cq.Send(d)
}

// blocks until a delivery arrives; false once closed and drained
func (rq *resultQueue) recv() (*delivery, bool) {
	return rq.cq.Recv()
}

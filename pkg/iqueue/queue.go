package iqueue

import (
	"container/list"
)

// Queue is an unbounded FIFO bridging a producer channel and a consumer
// channel through an in-memory list, so senders never block on a slow
// consumer.
type Queue struct {
	queue *list.List
	send  chan interface{}
	recv  chan interface{}
}

func New() *Queue {
	return &Queue{
		queue: list.New(),
		send:  make(chan interface{}, 1),
		recv:  make(chan interface{}, 1),
	}
}

func (iq *Queue) Send(v interface{}) {
	iq.send <- v
}

func (iq *Queue) Receive() <-chan interface{} {
	return iq.recv
}

func (iq *Queue) Len() int {
	return iq.queue.Len()
}

func (iq *Queue) Queue() *list.List {
	return iq.queue
}

func (iq *Queue) Close() {
	close(iq.send)
}

// Loop shuttles values from the send channel through the list to the recv
// channel until the send side closes and the list drains.
func (iq *Queue) Loop() {
	for {
		front := iq.queue.Front()
		if front != nil {
			select {
			case iq.recv <- front.Value:
				iq.queue.Remove(front)
			case value, ok := <-iq.send:
				if ok {
					iq.queue.PushBack(value)
				} else {
					iq.send = nil
				}
			}
			continue
		}

		if iq.send == nil {
			close(iq.recv)
			return
		}
		value, ok := <-iq.send
		if !ok {
			close(iq.recv)
			return
		}
		iq.queue.PushBack(value)
	}
}

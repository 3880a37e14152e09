package queue

import "github.com/Veraticus/the-queue-must-flow/internal/model"

// Observer is notified after engine operations. Callbacks run synchronously on
// the caller's goroutine after the write has committed, so they must be fast.
type Observer interface {
	RequestEnqueued(req model.QueueRequest)
	RequestTransitioned(req model.QueueRequest, from model.Status)
	RequestCompleted(req model.QueueRequest, record model.TransactionRecord)
	OperationFailed(op string, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RequestEnqueued(model.QueueRequest)                           {}
func (NopObserver) RequestTransitioned(model.QueueRequest, model.Status)         {}
func (NopObserver) RequestCompleted(model.QueueRequest, model.TransactionRecord) {}
func (NopObserver) OperationFailed(string, error)                                {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) RequestEnqueued(req model.QueueRequest) {
	for _, obs := range o {
		obs.RequestEnqueued(req)
	}
}

func (o Observers) RequestTransitioned(req model.QueueRequest, from model.Status) {
	for _, obs := range o {
		obs.RequestTransitioned(req, from)
	}
}

func (o Observers) RequestCompleted(req model.QueueRequest, record model.TransactionRecord) {
	for _, obs := range o {
		obs.RequestCompleted(req, record)
	}
}

func (o Observers) OperationFailed(op string, err error) {
	for _, obs := range o {
		obs.OperationFailed(op, err)
	}
}

package contracts

import "github.com/julienschmidt/httprouter"

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Worker is a background job owned by the application lifecycle.
type Worker interface {
	Start() error
	Stop() error
}

// Package asynclife provides composable state-machine primitives for
// long-running services and one-shot asynchronous operations.
//
// Two entities sit at the core. A Service models a restartable background
// subsystem with states {Stopped, Running, Failed}:
//
//	type MyHTTPServer struct {
//	    *asynclife.Service
//	    server *http.Server
//	}
//
//	func NewHTTPServer() *MyHTTPServer {
//	    server := &http.Server{Addr: ":8090"}
//	    m := &MyHTTPServer{server: server}
//	    m.Service = asynclife.NewService(asynclife.ServiceHooks{
//	        Start: func(ctx context.Context) error {
//	            ln, err := net.Listen("tcp", server.Addr)
//	            if err != nil {
//	                return err
//	            }
//	            go server.Serve(ln)
//	            return nil
//	        },
//	        Stop: server.Shutdown,
//	    })
//	    return m
//	}
//
// An AsyncOperation models a one-shot, cancellable computation that yields a
// typed result or a failure cause, with states {NotStarted, Running,
// Completed, Failed, Cancelled}. Both publish ordered state-change events to
// registered listeners and tolerate out-of-order notifications (a body may
// legitimately report completion before its own start has been observed).
//
// Around these two primitives sit operation schedulers (queued, no-wait,
// cancel-previous), operation combinators (Sequential, Concurrent, Timed,
// Delayed, Periodic, Backgrounded, OnFault, Nop, Idle), service combinators
// (CompositeService, ConcurrentService, Chain), future-condition helpers and
// a small observable-variable cell.
package asynclife

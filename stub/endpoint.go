package stub

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Method is an HTTP verb a declarative Route can answer.
type Method string

const (
	Get  Method = http.MethodGet
	Post Method = http.MethodPost
	Put  Method = http.MethodPut
)

// RecordFunc appends a captured request for path with the given JSON body.
type RecordFunc func(path string, bodyJSON string)

// Endpoint is one mocked route. It is implemented by Route and Custom only.
type Endpoint interface {
	mount(r chi.Router, record RecordFunc)
}

// QueryBody serves Body when the request query string equals Query.
type QueryBody struct {
	Query string
	Body  any
}

// Route is a declarative endpoint.
type Route struct {
	Method     Method
	Path       string
	StatusCode int // 0 means 200
	Body       any
	// PerQuery, when non-empty, selects the GET response by exact query
	// string. The first match wins; a miss is a 404 whatever StatusCode says.
	PerQuery []QueryBody
}

// Custom owns routing for its path. Mount registers whatever handlers it
// needs and calls record to make requests visible to assertions.
type Custom struct {
	Path  string
	Mount func(r chi.Router, record RecordFunc)
}

func (c Custom) mount(r chi.Router, record RecordFunc) {
	if c.Mount != nil {
		c.Mount(r, record)
	}
}

func (e Route) status() int {
	if e.StatusCode == 0 {
		return http.StatusOK
	}
	return e.StatusCode
}

func (e Route) mount(r chi.Router, record RecordFunc) {
	switch e.Method {
	case Get:
		r.Get(e.Path, e.serveGet(record))
	case Post:
		r.Post(e.Path, e.servePost(record))
	case Put:
		r.Put(e.Path, e.servePut(record))
	}
}

func (e Route) serveGet(record RecordFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if len(e.PerQuery) > 0 {
			got := strings.TrimPrefix(req.URL.RawQuery, "?")
			for _, q := range e.PerQuery {
				if strings.TrimPrefix(q.Query, "?") == got {
					writeJSON(w, http.StatusOK, q.Body)
					return
				}
			}
			http.NotFound(w, req)
			return
		}
		record(e.Path, emptyBody)
		if e.status() == http.StatusNotFound {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, e.status(), e.Body)
	}
}

func (e Route) servePost(record RecordFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		// Rejected calls never reach the recorder.
		if e.status() != http.StatusOK {
			w.WriteHeader(e.status())
			return
		}
		body, err := readJSONBody(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		record(e.Path, body)
		writeJSON(w, http.StatusOK, e.Body)
	}
}

// servePut ignores the request body; stubbing PUT payloads would need its own
// branch here.
func (e Route) servePut(record RecordFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		record(e.Path, emptyBody)
		writeJSON(w, http.StatusOK, e.Body)
	}
}

// Package controlapi exposes the router's table over HTTP: a
// healthcheck, a listing of the current entries, and insert/delete
// operations, every route except the healthcheck gated behind an
// RS256-signed bearer token. This is the same role a control plane normally plays
// against a forwarding table that was otherwise only ever populated by
// a static config file.
package controlapi

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/netrack/ppl/gen"
	"github.com/netrack/ppl/table"
)

var (
	errMissingBearerToken      = errors.New("controlapi: missing bearer token")
	errInvalidBearerToken      = errors.New("controlapi: invalid bearer token")
	errUnexpectedSigningMethod = errors.New("controlapi: unexpected signing method")
)

// Server is the control-plane HTTP API for a running router.
type Server struct {
	router *table.Table[gen.RouterAction]
	mux    chi.Router
}

// New builds a Server backed by router, with every /table route
// guarded by JWT bearer tokens verified against verifyKey.
func New(router *table.Table[gen.RouterAction], verifyKey *rsa.PublicKey) *Server {
	s := &Server{router: router}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(verifyKey))
		r.Get("/table", s.handleListEntries)
		r.Post("/table", s.handleInsertEntry)
		r.Delete("/table/{name}", s.handleDeleteEntry)
	})

	s.mux = r
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// entryView is the JSON representation of a table entry returned by
// GET /table. The action closure itself isn't serializable, so only
// the routing-relevant fields it was built from are surfaced.
type entryView struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Key      string `json:"key"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.router.Entries()
	views := make([]entryView, len(entries))
	for i, e := range entries {
		views[i] = entryView{Name: e.Name, Priority: e.Priority, Key: e.Key.String()}
	}
	writeJSON(w, http.StatusOK, views)
}

// insertRequest is the JSON body POST /table expects: a prefix-routed
// entry, mirroring config.Entry's shape since both ultimately build
// the same kind of router table row.
type insertRequest struct {
	Name     string `json:"name"`
	Prefix   string `json:"prefix"`
	Port     uint8  `json:"port"`
	NextHop  string `json:"next_hop"`
	Priority int    `json:"priority"`
}

func (s *Server) handleInsertEntry(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	_, ipnet, err := net.ParseCIDR(req.Prefix)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ones, _ := ipnet.Mask.Size()

	mac, err := net.ParseMAC(req.NextHop)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var nextHop [6]byte
	copy(nextHop[:], mac)

	err = s.router.Insert(table.TableEntry[gen.RouterAction]{
		Name:     req.Name,
		Priority: req.Priority,
		Key:      table.KeySet{table.LpmKey(table.Prefix{Addr: ipnet.IP.To16(), Len: ones})},
		Action:   gen.Route(req.Port, nextHop),
	})
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.router.RemoveByName(name) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// bearerAuth returns chi middleware that requires a valid RS256 bearer
// token in the Authorization header, verified against verifyKey.
func bearerAuth(verifyKey *rsa.PublicKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, errMissingBearerToken)
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
					return nil, errUnexpectedSigningMethod
				}
				return verifyKey, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, errInvalidBearerToken)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return ""
	}
	return h[len(prefix):]
}

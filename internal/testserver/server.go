// Package testserver runs a fake of the upstream JSON API on httptest so
// crawler tests can script responses and count calls.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// Reply is a scripted response
type Reply struct {
	Status int
	Body   string
}

// JSON is a 200 reply with the given body
func JSON(body string) Reply {
	return Reply{Status: http.StatusOK, Body: body}
}

// NotOK is a 200 reply whose ok field is 0
var NotOK = JSON(`{"ok":0}`)

// Request is one request the server received
type Request struct {
	Path    string
	Query   string
	Referer string
	XSRF    string
	Cookie  string
}

// Server fakes the profile, listing and long text endpoints. Anything not
// scripted answers {"ok":0}.
type Server struct {
	server *httptest.Server

	mu        sync.Mutex
	profiles  map[string]Reply
	pages     map[string]map[int]Reply
	longTexts map[string]Reply
	calls     map[string]int
	requests  []Request
}

// New starts a server; callers must Close it
func New() *Server {
	s := &Server{
		profiles:  make(map[string]Reply),
		pages:     make(map[string]map[int]Reply),
		longTexts: make(map[string]Reply),
		calls:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ajax/profile/info", s.handleProfile)
	mux.HandleFunc("/ajax/statuses/mymblog", s.handleListing)
	mux.HandleFunc("/ajax/statuses/longtext", s.handleLongText)

	s.server = httptest.NewServer(mux)
	return s
}

// URL is the base URL to configure the client with
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.Close()
}

// SetProfile scripts the profile reply for uid
func (s *Server) SetProfile(uid string, r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[uid] = r
}

// SetPage scripts the listing reply for one page of uid
func (s *Server) SetPage(uid string, page int, r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages[uid] == nil {
		s.pages[uid] = make(map[int]Reply)
	}
	s.pages[uid][page] = r
}

// SetLongText scripts the long text reply for mblogid
func (s *Server) SetLongText(mblogid string, r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.longTexts[mblogid] = r
}

// ProfileCalls counts profile requests for uid
func (s *Server) ProfileCalls(uid string) int {
	return s.count("profile:" + uid)
}

// PageCalls counts listing requests for one page of uid
func (s *Server) PageCalls(uid string, page int) int {
	return s.count(fmt.Sprintf("page:%s:%d", uid, page))
}

// ListingCalls counts listing requests for uid across all pages
func (s *Server) ListingCalls(uid string) int {
	return s.count("listing:" + uid)
}

// LongTextCalls counts long text requests for mblogid
func (s *Server) LongTextCalls(mblogid string) int {
	return s.count("longtext:" + mblogid)
}

// TotalCalls counts every request received
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every request received, in order
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *Server) record(r *http.Request, keys ...string) {
	s.requests = append(s.requests, Request{
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Referer: r.Header.Get("Referer"),
		XSRF:    r.Header.Get("X-Xsrf-Token"),
		Cookie:  r.Header.Get("Cookie"),
	})
	for _, k := range keys {
		s.calls[k]++
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")

	s.mu.Lock()
	s.record(r, "profile:"+uid)
	reply, ok := s.profiles[uid]
	s.mu.Unlock()

	write(w, reply, ok)
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid := q.Get("uid")
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || q.Get("feature") != "0" {
		http.Error(w, "bad listing query", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.record(r, "listing:"+uid, fmt.Sprintf("page:%s:%d", uid, page))
	reply, ok := s.pages[uid][page]
	s.mu.Unlock()

	write(w, reply, ok)
}

func (s *Server) handleLongText(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	s.mu.Lock()
	s.record(r, "longtext:"+id)
	reply, ok := s.longTexts[id]
	s.mu.Unlock()

	write(w, reply, ok)
}

func write(w http.ResponseWriter, reply Reply, ok bool) {
	if !ok {
		reply = NotOK
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(reply.Status)
	w.Write([]byte(reply.Body))
}

// Item is one post in a scripted listing page
type Item struct {
	ID       string
	Text     string
	MblogID  string
	LongText bool
}

// ProfileBody renders an ok profile payload with the given user fields
func ProfileBody(user map[string]any) string {
	return mustJSON(map[string]any{"ok": 1, "data": map[string]any{"user": user}})
}

// PageBody renders an ok listing payload; numeric IDs are emitted as JSON
// numbers the way the upstream sends them
func PageBody(items ...Item) string {
	list := make([]map[string]any, 0, len(items))
	for _, it := range items {
		var id any = it.ID
		if _, err := strconv.ParseUint(it.ID, 10, 64); err == nil {
			id = json.Number(it.ID)
		}
		list = append(list, map[string]any{
			"id":              id,
			"created_at":      "Mon Jan 01 08:00:00 +0800 2024",
			"text_raw":        it.Text,
			"comments_count":  0,
			"reposts_count":   0,
			"attitudes_count": 1,
			"mblogid":         it.MblogID,
			"isLongText":      it.LongText,
		})
	}
	return mustJSON(map[string]any{"ok": 1, "data": map[string]any{"list": list}})
}

// LongTextBody renders an ok long text payload
func LongTextBody(text string) string {
	return mustJSON(map[string]any{"ok": 1, "data": map[string]any{"longTextContent": text}})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

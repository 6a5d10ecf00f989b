// Package apitest provides an in-memory stand-in for the paper service,
// used by tests to exercise the client against the real HTTP contract.
package apitest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// Paper is the server-side record kept by the fake.
type Paper struct {
	ID               int
	Title            string
	Filename         string
	Status           string
	PageCount        int
	Summary          map[string]any
	SummaryVersion   int
	SummaryUpdatedAt time.Time
	Chat             []Message
	// Statuses is consumed one entry per GET of the paper; the last status
	// sticks.
	Statuses []string
}

// Message is one stored chat entry.
type Message struct {
	Role       string
	Content    string
	SourceHint string
}

type failure struct {
	status int
	body   string
}

// Server is a fake paper service backed by gin.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	papers       map[int]*Paper
	nextID       int
	duplicates   map[string]int
	uploadStatus string
	onUpload     func(*Paper)
	failures     map[string][]failure
	requests     []string
}

// New starts a fake server that shuts down with the test.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		papers:     map[int]*Paper{},
		nextID:     1,
		duplicates: map[string]int{},
		failures:   map[string][]failure{},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(s.record, s.inject)
	papers := router.Group("/api/papers")
	papers.GET("", s.listPapers)
	papers.POST("/upload", s.upload)
	papers.GET("/:id", s.getPaper)
	papers.DELETE("/:id", s.deletePaper)
	papers.GET("/:id/pdf", s.document)
	papers.GET("/:id/pdf/page/:page", s.page)
	papers.GET("/:id/chat", s.chatHistory)
	papers.POST("/:id/chat", s.chat)
	papers.POST("/:id/refresh-summary", s.refreshSummary)
	papers.POST("/:id/update-summary-from-discussion", s.updateSummary)
	return router
}

// AddPaper stores p, assigning an id when p.ID is zero, and returns the id.
func (s *Server) AddPaper(p Paper) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID
	}
	if p.ID >= s.nextID {
		s.nextID = p.ID + 1
	}
	if p.Status == "" {
		p.Status = "queued"
	}
	stored := p
	s.papers[p.ID] = &stored
	return p.ID
}

// SetStatuses scripts the statuses returned by successive GETs of paper id.
func (s *Server) SetStatuses(id int, statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.papers[id]; ok {
		p.Statuses = append([]string(nil), statuses...)
	}
}

// MarkDuplicate makes uploads named filename resolve to the existing paper id.
func (s *Server) MarkDuplicate(filename string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicates[filename] = id
}

// SetUploadStatus overrides the status given to new uploads.
func (s *Server) SetUploadStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadStatus = status
}

// OnUpload registers fn to adjust every newly created paper, for example to
// script its statuses.
func (s *Server) OnUpload(fn func(*Paper)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpload = fn
}

// Fail makes the next request for method and path answer with status and a
// JSON detail. An empty detail sends a body that is not JSON.
func (s *Server) Fail(method, path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := "upstream exploded"
	if detail != "" {
		body = fmt.Sprintf(`{"detail":%q}`, detail)
	}
	key := method + " " + path
	s.failures[key] = append(s.failures[key], failure{status: status, body: body})
}

// Requests lists "METHOD uri" for every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests returns how many received requests start with prefix.
func (s *Server) CountRequests(prefix string) int {
	count := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			count++
		}
	}
	return count
}

// Paper returns a copy of the stored paper.
func (s *Server) Paper(id int) (Paper, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return Paper{}, false
	}
	return *p, true
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, c.Request.Method+" "+c.Request.URL.RequestURI())
	s.mu.Unlock()
	c.Next()
}

func (s *Server) inject(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	s.mu.Lock()
	queue := s.failures[key]
	var f *failure
	if len(queue) > 0 {
		f = &queue[0]
		s.failures[key] = queue[1:]
	}
	s.mu.Unlock()
	if f == nil {
		c.Next()
		return
	}
	c.Data(f.status, "application/json", []byte(f.body))
	c.Abort()
}

func (s *Server) lookup(c *gin.Context) (*Paper, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err == nil {
		if p, ok := s.papers[id]; ok {
			return p, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Paper not found"})
	return nil, false
}

func (s *Server) listPapers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.papers))
	for id := range s.papers {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		p := s.papers[id]
		out = append(out, gin.H{"id": p.ID, "title": p.Title, "filename": p.Filename, "status": p.Status})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "file is required"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only PDF file is allowed."})
		return
	}
	file, err := header.Open()
	if err == nil {
		_, _ = io.Copy(io.Discard, file)
		file.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.duplicates[header.Filename]; ok {
		if p, ok := s.papers[existing]; ok {
			c.JSON(http.StatusOK, gin.H{
				"id": p.ID, "title": p.Title, "status": p.Status,
				"duplicate": true, "duplicate_of": p.ID,
				"message": "Paper already processed; reused existing results.",
			})
			return
		}
	}
	status := s.uploadStatus
	if status == "" {
		status = "queued"
	}
	p := &Paper{
		ID:       s.nextID,
		Title:    strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)),
		Filename: header.Filename,
		Status:   status,
	}
	s.nextID++
	if s.onUpload != nil {
		s.onUpload(p)
	}
	s.papers[p.ID] = p
	c.JSON(http.StatusOK, gin.H{
		"id": p.ID, "title": p.Title, "status": p.Status,
		"duplicate": false, "duplicate_of": nil,
		"message": "Uploaded; queued for processing.",
	})
}

func (s *Server) getPaper(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	if len(p.Statuses) > 0 {
		p.Status = p.Statuses[0]
		if len(p.Statuses) > 1 {
			p.Statuses = p.Statuses[1:]
		}
	}
	c.JSON(http.StatusOK, paperJSON(p))
}

func paperJSON(p *Paper) gin.H {
	out := gin.H{
		"id":                 p.ID,
		"title":              p.Title,
		"filename":           p.Filename,
		"status":             p.Status,
		"summary":            p.Summary,
		"summary_version":    p.SummaryVersion,
		"summary_updated_at": nil,
		"page_count":         nil,
	}
	if !p.SummaryUpdatedAt.IsZero() {
		out["summary_updated_at"] = p.SummaryUpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	if p.PageCount > 0 {
		out["page_count"] = p.PageCount
	}
	return out
}

func (s *Server) deletePaper(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	delete(s.papers, p.ID)
	c.JSON(http.StatusOK, gin.H{"deleted_id": p.ID, "message": "Paper deleted"})
}

func (s *Server) document(c *gin.Context) {
	s.mu.Lock()
	p, ok := s.lookup(c)
	if !ok {
		s.mu.Unlock()
		return
	}
	pages := make([]string, 0, max(p.PageCount, 1))
	for i := 1; i <= max(p.PageCount, 1); i++ {
		pages = append(pages, fmt.Sprintf("%s page %d", p.Title, i))
	}
	s.mu.Unlock()
	c.Header("Etag", fmt.Sprintf(`"paper-%d"`, p.ID))
	c.Data(http.StatusOK, "application/pdf", BuildPDF(pages...))
}

func (s *Server) page(c *gin.Context) {
	s.mu.Lock()
	p, ok := s.lookup(c)
	if !ok {
		s.mu.Unlock()
		return
	}
	title, count := p.Title, p.PageCount
	s.mu.Unlock()
	n, err := strconv.Atoi(c.Param("page"))
	if err != nil || n < 1 || (count > 0 && n > count) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Page not found"})
		return
	}
	c.Data(http.StatusOK, "application/pdf", BuildPDF(fmt.Sprintf("%s page %d", title, n)))
}

func (s *Server) chatHistory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	out := make([]gin.H, 0, len(p.Chat))
	for _, m := range p.Chat {
		out = append(out, messageJSON(m))
	}
	c.JSON(http.StatusOK, out)
}

func messageJSON(m Message) gin.H {
	out := gin.H{"role": m.Role, "content": m.Content, "source_hint": nil}
	if m.SourceHint != "" {
		out["source_hint"] = m.SourceHint
	}
	return out
}

func (s *Server) chat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "message is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	answer := Message{Role: "assistant", Content: "Answer: " + req.Message, SourceHint: "pages 1-1"}
	p.Chat = append(p.Chat, Message{Role: "user", Content: req.Message}, answer)
	c.JSON(http.StatusOK, gin.H{"answer": messageJSON(answer)})
}

func (s *Server) refreshSummary(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	p.Status = "queued"
	c.JSON(http.StatusOK, paperJSON(p))
}

func (s *Server) updateSummary(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	if p.Summary == nil {
		p.Summary = map[string]any{}
	}
	p.Summary["en"] = map[string]any{
		"question": "Updated question",
		"solution": "Updated solution",
		"findings": fmt.Sprintf("Findings after %d chat messages", len(p.Chat)),
	}
	p.SummaryVersion++
	p.SummaryUpdatedAt = time.Now()
	c.JSON(http.StatusOK, paperJSON(p))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package entreztest provides an in-process fake of the Entrez E-utilities
// endpoints used by sra-fetch (esearch, esummary, efetch for taxonomy, and
// einfo), for tests of the fetch and pipeline stages.
package entreztest

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Experiment describes one SRA entry served by esummary. Empty fields are
// left out of the generated XML.
type Experiment struct {
	Accession      string
	Title          string
	StudyTitle     string
	Strategy       string
	Layout         string // element name, e.g. "PAIRED"
	Instrument     string
	TaxID          string
	ScientificName string
	Run            string
	Spots          string
	Bases          string
	Size           string
	CreateDate     string
}

// Taxon is one taxonomy entry served by efetch db=taxonomy.
type Taxon struct {
	ScientificName string
	Lineage        string
}

// Server is a fake E-utilities host.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// IDs are the esearch results, in order.
	IDs []string

	// Docs maps identifiers to the entries esummary returns. Identifiers
	// absent from Docs are silently omitted, like retracted accessions.
	Docs map[string]Experiment

	// Raw maps identifiers to verbatim esummary entry JSON, taking
	// precedence over Docs.
	Raw map[string]string

	// FailIDs makes every esummary request containing one of these
	// identifiers fail with 503.
	FailIDs map[string]bool

	// FailSearch makes every esearch request fail with 503.
	FailSearch bool

	Taxa map[string]Taxon

	calls map[string]int
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Docs:    map[string]Experiment{},
		Raw:     map[string]string{},
		FailIDs: map[string]bool{},
		Taxa:    map[string]Taxon{},
		calls:   map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Calls returns how many requests reached endpoint (e.g. "esummary.fcgi").
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// Add registers an experiment under id and appends id to the search
// results.
func (s *Server) Add(id string, e Experiment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IDs = append(s.IDs, id)
	s.Docs[id] = e
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	endpoint := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	s.calls[endpoint]++
	s.mu.Unlock()

	switch endpoint {
	case "esearch.fcgi":
		s.esearch(w, r)
	case "esummary.fcgi":
		s.esummary(w, r)
	case "efetch.fcgi":
		s.efetch(w, r)
	case "einfo.fcgi":
		fmt.Fprint(w, `{"einforesult": {"dbinfo": [{"dbname": "sra", "menuname": "SRA", "description": "SRA Database", "count": "3", "lastupdate": "2026/10/01 00:00", "fieldlist": []}]}}`)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) esearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSearch {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	start, _ := strconv.Atoi(r.Form.Get("retstart"))
	size, _ := strconv.Atoi(r.Form.Get("retmax"))
	page := []string{}
	if start < len(s.IDs) {
		page = s.IDs[start:min(start+size, len(s.IDs))]
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"esearchresult": map[string]any{
			"count":            strconv.Itoa(len(s.IDs)),
			"retmax":           strconv.Itoa(len(page)),
			"retstart":         strconv.Itoa(start),
			"idlist":           page,
			"querytranslation": r.Form.Get("term"),
		},
	})
}

func (s *Server) esummary(w http.ResponseWriter, r *http.Request) {
	ids := strings.Split(r.Form.Get("id"), ",")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if s.FailIDs[id] {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}

	var b strings.Builder
	b.WriteString(`{"header": {"type": "esummary", "version": "0.3"}, "result": {"uids": [`)
	var entries []string
	first := true
	for _, id := range ids {
		var entry string
		if raw, ok := s.Raw[id]; ok {
			entry = raw
		} else if e, ok := s.Docs[id]; ok {
			entry = Entry(id, e)
		} else {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(strconv.Quote(id))
		entries = append(entries, fmt.Sprintf("%q: %s", id, entry))
	}
	b.WriteString("]")
	for _, e := range entries {
		b.WriteString(", ")
		b.WriteString(e)
	}
	b.WriteString("}}")

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, b.String())
}

type taxaSet struct {
	XMLName xml.Name   `xml:"TaxaSet"`
	Taxa    []taxonXML `xml:"Taxon"`
}

type taxonXML struct {
	TaxID          string `xml:"TaxId"`
	ScientificName string `xml:"ScientificName"`
	Lineage        string `xml:"Lineage"`
}

func (s *Server) efetch(w http.ResponseWriter, r *http.Request) {
	if r.Form.Get("db") != "taxonomy" {
		http.Error(w, "unsupported db", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	var set taxaSet
	for _, id := range strings.Split(r.Form.Get("id"), ",") {
		if t, ok := s.Taxa[id]; ok {
			set.Taxa = append(set.Taxa, taxonXML{TaxID: id, ScientificName: t.ScientificName, Lineage: t.Lineage})
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, xml.Header)
	xml.NewEncoder(w).Encode(set)
}

// Entry renders the esummary JSON entry for e.
func Entry(id string, e Experiment) string {
	var x strings.Builder
	x.WriteString("<Summary>")
	elem(&x, "Title", e.Title)
	if e.Instrument != "" {
		fmt.Fprintf(&x, `<Platform instrument_model="%s">ILLUMINA</Platform>`, html.EscapeString(e.Instrument))
	}
	if e.Size != "" || e.Spots != "" {
		fmt.Fprintf(&x, `<Statistics total_runs="1" total_spots="%s" total_bases="%s" total_size="%s" load_done="true" cluster_name="public"/>`,
			e.Spots, e.Bases, e.Size)
	}
	x.WriteString("</Summary>")
	if e.Accession != "" {
		fmt.Fprintf(&x, `<Experiment acc="%s" ver="1" status="public" name="%s"/>`, e.Accession, html.EscapeString(e.Title))
	}
	if e.StudyTitle != "" {
		fmt.Fprintf(&x, `<Study acc="SRP%s" name="%s"/>`, id, html.EscapeString(e.StudyTitle))
	}
	if e.TaxID != "" || e.ScientificName != "" {
		fmt.Fprintf(&x, `<Organism taxid="%s" ScientificName="%s"/>`, e.TaxID, html.EscapeString(e.ScientificName))
	}
	x.WriteString("<Library_descriptor>")
	elem(&x, "LIBRARY_STRATEGY", e.Strategy)
	if e.Layout != "" {
		fmt.Fprintf(&x, "<LIBRARY_LAYOUT><%s/></LIBRARY_LAYOUT>", e.Layout)
	}
	x.WriteString("</Library_descriptor>")

	runs := ""
	if e.Run != "" {
		runs = fmt.Sprintf(`<Run acc="%s" total_spots="%s" total_bases="%s" load_done="true" is_public="true" cluster_name="public" static_data_available="true"/>`,
			e.Run, e.Spots, e.Bases)
	}

	entry := map[string]any{
		"uid":        id,
		"expxml":     x.String(),
		"runs":       runs,
		"extlinks":   "",
		"createdate": e.CreateDate,
		"updatedate": e.CreateDate,
	}
	data, _ := json.Marshal(entry)
	return string(data)
}

func elem(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<%s>%s</%s>", name, html.EscapeString(value), name)
}

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/staveplay/staveplay/internal/library"
)

const uploadDoc = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="3.1">
  <work><work-title>Study in C</work-title></work>
  <identification><creator type="composer">M. Carcassi</creator></identification>
  <part-list><score-part id="P1"><part-name>Guitar</part-name></score-part></part-list>
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>2</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
      </attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>2</duration><type>quarter</type></note>
      <note><pitch><step>E</step><octave>4</octave></pitch><duration>2</duration><type>quarter</type></note>
      <note><pitch><step>G</step><octave>4</octave></pitch><duration>4</duration><type>half</type></note>
    </measure>
  </part>
</score-partwise>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := library.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(New(store, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func uploadScore(t *testing.T, ts *httptest.Server) library.Entry {
	t.Helper()
	resp, err := http.Post(ts.URL+"/scores?filename=study.musicxml", "application/xml", strings.NewReader(uploadDoc))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var entry library.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		t.Fatal(err)
	}
	return entry
}

func TestUploadListGetDelete(t *testing.T) {
	ts := newTestServer(t)
	entry := uploadScore(t, ts)
	if entry.Title != "Study in C" || entry.Measures != 1 {
		t.Fatalf("entry = %+v", entry)
	}

	resp, err := http.Get(ts.URL + "/scores")
	if err != nil {
		t.Fatal(err)
	}
	var list []library.Entry
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(list) != 1 || list[0].ID != entry.ID {
		t.Fatalf("list = %+v", list)
	}

	resp, err = http.Get(ts.URL + "/scores/" + entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/scores/"+entry.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/scores/" + entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", resp.StatusCode)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	entry := uploadScore(t, ts)

	resp, err := http.Get(ts.URL + "/scores/" + entry.ID + "/document")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("document status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != uploadDoc {
		t.Fatalf("stored document differs, %d bytes", len(body))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "musicxml") {
		t.Fatalf("content type = %q", ct)
	}
}

func TestUploadRejectsBrokenDocument(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/scores", "application/xml", strings.NewReader("<score-partwise><nope"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("broken upload status = %d", resp.StatusCode)
	}
}

func TestUnknownRoutesAnd404s(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/scores/not-a-real-id")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/scores/not-a-real-id", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete unknown status = %d", resp.StatusCode)
	}
}

func TestCORSHeadersPresent(t *testing.T) {
	ts := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/scores", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q", got)
	}
}

// ===========================================================================
//
// File Name:  uniprot.go
//
// ===========================================================================

package interactome

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// IdentifierMapper maps gene symbols of one organism to UniProt accessions
type IdentifierMapper interface {
	MapGeneNames(ctx context.Context, taxID int, genes []string) (map[string]string, error)
}

// UniProtMapper talks to the UniProt ID mapping REST service
type UniProtMapper struct {
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int

	http *http.Client
}

// NewUniProtMapper builds a mapper with the configured base URL and request timeout
func NewUniProtMapper(cfg Config) *UniProtMapper {

	timeout := time.Duration(cfg.RemoteTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &UniProtMapper{
		BaseURL:      strings.TrimRight(cfg.MappingURL, "/"),
		PollInterval: 3 * time.Second,
		MaxPolls:     40,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

type mappingJob struct {
	JobID string `json:"jobId"`
}

type mappingStatus struct {
	JobStatus string          `json:"jobStatus"`
	Results   json.RawMessage `json:"results"`
}

type mappingResults struct {
	Results []mappingResult `json:"results"`
}

type mappingResult struct {
	From string          `json:"from"`
	To   json.RawMessage `json:"to"`
}

type uniProtEntry struct {
	PrimaryAccession string `json:"primaryAccession"`
	CrossReferences  []struct {
		Database string `json:"database"`
		ID       string `json:"id"`
	} `json:"uniProtKBCrossReferences"`
}

// accession prefers an AlphaFoldDB cross reference, then the primary accession
func (m mappingResult) accession() string {

	var plain string
	if err := json.Unmarshal(m.To, &plain); err == nil {
		return strings.TrimSpace(plain)
	}

	var entry uniProtEntry
	if err := json.Unmarshal(m.To, &entry); err != nil {
		return ""
	}
	for _, ref := range entry.CrossReferences {
		if ref.Database == "AlphaFoldDB" && ref.ID != "" {
			return ref.ID
		}
	}
	return entry.PrimaryAccession
}

// ParseMappingResults decodes a results payload, the first result per gene wins
func ParseMappingResults(data []byte) map[string]string {

	out := make(map[string]string)

	var res mappingResults
	if err := json.Unmarshal(data, &res); err != nil {
		// malformed payloads leave every gene unresolved
		return out
	}

	for _, r := range res.Results {
		if r.From == "" {
			continue
		}
		if _, ok := out[r.From]; ok {
			continue
		}
		if acc := r.accession(); acc != "" {
			out[r.From] = acc
		}
	}

	return out
}

func (u *UniProtMapper) client() *http.Client {

	if u.http == nil {
		u.http = &http.Client{Timeout: 2 * time.Minute}
	}
	return u.http
}

// send performs one request and returns the body of a 2xx response
func (u *UniProtMapper) send(ctx context.Context, method, path string, form url.Values) ([]byte, error) {

	fullURL := u.BaseURL + path

	var payload io.Reader
	if form != nil {
		payload = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := u.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	return data, nil
}

// MapGeneNames submits one mapping job, waits for it, and collects accessions
func (u *UniProtMapper) MapGeneNames(ctx context.Context, taxID int, genes []string) (map[string]string, error) {

	if len(genes) == 0 {
		return map[string]string{}, nil
	}

	form := url.Values{}
	form.Set("ids", strings.Join(genes, ","))
	form.Set("from", "Gene_Name")
	form.Set("to", "UniProtKB")
	form.Set("taxId", strconv.Itoa(taxID))

	data, err := u.send(ctx, http.MethodPost, "/idmapping/run", form)
	if err != nil {
		return nil, err
	}

	var job mappingJob
	if err := json.Unmarshal(data, &job); err != nil || job.JobID == "" {
		return nil, fmt.Errorf("idmapping run returned no job id")
	}

	polls := u.MaxPolls
	if polls < 1 {
		polls = 1
	}

	for i := 0; i < polls; i++ {
		data, err = u.send(ctx, http.MethodGet, "/idmapping/status/"+job.JobID, nil)
		if err != nil {
			return nil, err
		}

		var status mappingStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("idmapping status: %v", err)
		}

		// finished jobs redirect to their results
		if len(status.Results) > 0 {
			return ParseMappingResults(data), nil
		}

		switch status.JobStatus {
		case "FINISHED":
			data, err = u.send(ctx, http.MethodGet, "/idmapping/uniprotkb/results/"+job.JobID+"?format=json&size=500", nil)
			if err != nil {
				return nil, err
			}
			return ParseMappingResults(data), nil
		case "NEW", "RUNNING", "":
		default:
			return nil, fmt.Errorf("idmapping job %s: status %s", job.JobID, status.JobStatus)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(u.PollInterval):
		}
	}

	return nil, fmt.Errorf("idmapping job %s did not finish after %d polls", job.JobID, polls)
}

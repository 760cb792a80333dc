package dataone

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"mnstat/internal/model"
)

// ObjectList is a parsed listObjects response page.
type ObjectList struct {
	Total   int
	Count   int
	Start   int
	Objects []model.ObjectInfo
}

type objectListDoc struct {
	XMLName    xml.Name        `xml:"objectList"`
	Total      int             `xml:"total,attr"`
	Count      int             `xml:"count,attr"`
	Start      int             `xml:"start,attr"`
	ObjectInfo []objectInfoDoc `xml:"objectInfo"`
}

type objectInfoDoc struct {
	Identifier   string      `xml:"identifier"`
	FormatID     string      `xml:"formatId"`
	Checksum     checksumDoc `xml:"checksum"`
	DateModified string      `xml:"dateSysMetadataModified"`
	Size         int64       `xml:"size"`
}

type checksumDoc struct {
	Algorithm string `xml:"algorithm,attr"`
	Value     string `xml:",chardata"`
}

// ParseObjectList decodes a listObjects XML document.
func ParseObjectList(data []byte) (*ObjectList, error) {
	var doc objectListDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse objectList: %w", err)
	}

	list := &ObjectList{
		Total:   doc.Total,
		Count:   doc.Count,
		Start:   doc.Start,
		Objects: make([]model.ObjectInfo, 0, len(doc.ObjectInfo)),
	}
	for _, entry := range doc.ObjectInfo {
		info := model.ObjectInfo{
			Identifier:        entry.Identifier,
			FormatID:          entry.FormatID,
			ChecksumAlgorithm: entry.Checksum.Algorithm,
			Checksum:          strings.TrimSpace(entry.Checksum.Value),
			Size:              entry.Size,
		}
		if ts, err := ParseTime(entry.DateModified); err == nil {
			info.DateModified = ts
		}
		list.Objects = append(list.Objects, info)
	}
	return list, nil
}

type nodeListDoc struct {
	XMLName xml.Name  `xml:"nodeList"`
	Nodes   []nodeDoc `xml:"node"`
}

type nodeDoc struct {
	Type            string `xml:"type,attr"`
	State           string `xml:"state,attr"`
	Identifier      string `xml:"identifier"`
	Name            string `xml:"name"`
	Description     string `xml:"description"`
	BaseURL         string `xml:"baseURL"`
	Services        struct {
		Service []serviceDoc `xml:"service"`
	} `xml:"services"`
	Synchronization struct {
		LastHarvested string `xml:"lastHarvested"`
	} `xml:"synchronization"`
}

type serviceDoc struct {
	Name      string `xml:"name,attr"`
	Version   string `xml:"version,attr"`
	Available bool   `xml:"available,attr"`
}

// ParseNodeList decodes a CN node registry XML document.
func ParseNodeList(data []byte) ([]model.Node, error) {
	var doc nodeListDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse nodeList: %w", err)
	}

	nodes := make([]model.Node, 0, len(doc.Nodes))
	for _, entry := range doc.Nodes {
		node := model.Node{
			Identifier:  entry.Identifier,
			Name:        entry.Name,
			Description: entry.Description,
			BaseURL:     entry.BaseURL,
			Type:        strings.ToLower(entry.Type),
			State:       strings.ToLower(entry.State),
		}
		if ts, err := ParseTime(entry.Synchronization.LastHarvested); err == nil {
			node.LastHarvested = ts
		}
		for _, svc := range entry.Services.Service {
			node.Services = append(node.Services, model.Service{
				Name:      svc.Name,
				Version:   svc.Version,
				Available: svc.Available,
			})
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// SolrResult is the subset of a Solr select response the index check reads.
type SolrResult struct {
	NumFound int
	Docs     []SolrDoc
}

// SolrDoc carries the fields requested by the index check.
type SolrDoc struct {
	ID           string `json:"id"`
	SeriesID     string `json:"seriesId"`
	FormatID     string `json:"formatId"`
	DateModified string `json:"dateModified"`
	DateUploaded string `json:"dateUploaded"`
}

type solrResponseDoc struct {
	Response struct {
		NumFound int       `json:"numFound"`
		Docs     []SolrDoc `json:"docs"`
	} `json:"response"`
}

// ParseSolrResult decodes a Solr JSON response.
func ParseSolrResult(data []byte) (*SolrResult, error) {
	var doc solrResponseDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse solr response: %w", err)
	}
	return &SolrResult{NumFound: doc.Response.NumFound, Docs: doc.Response.Docs}, nil
}

// solrReserved are the characters that must be escaped in a Solr query term.
const solrReserved = `+-&|!(){}[]^"~*?:`

// EscapeSolrTerm escapes Solr query syntax characters in a term.
func EscapeSolrTerm(term string) string {
	var b strings.Builder
	b.Grow(len(term))
	for _, r := range term {
		if r == '\\' || strings.ContainsRune(solrReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
)

// DatabaseInfo describes the SRA database as reported by einfo.
type DatabaseInfo struct {
	Name        string
	MenuName    string
	Description string
	Count       string
	LastUpdate  string
	Fields      []SearchField
}

// SearchField is one field usable in a search expression ("[Organism]").
type SearchField struct {
	Name        string `json:"name"`
	FullName    string `json:"fullname"`
	Description string `json:"description"`
	TermCount   string `json:"termcount"`
}

type einfoResponse struct {
	Result struct {
		DBInfo []struct {
			DBName      string        `json:"dbname"`
			MenuName    string        `json:"menuname"`
			Description string        `json:"description"`
			Count       string        `json:"count"`
			LastUpdate  string        `json:"lastupdate"`
			FieldList   []SearchField `json:"fieldlist"`
		} `json:"dbinfo"`
	} `json:"einforesult"`
}

// Info queries einfo for the SRA database.
func (c *Client) Info(ctx context.Context) (DatabaseInfo, error) {
	data, err := c.eutils.Get(ctx, "einfo.fcgi", url.Values{
		"db":      {Database},
		"retmode": {"json"},
	})
	if err != nil {
		return DatabaseInfo{}, err
	}
	var resp einfoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return DatabaseInfo{}, fmt.Errorf("parsing einfo response: %w", err)
	}
	if len(resp.Result.DBInfo) == 0 {
		return DatabaseInfo{}, fmt.Errorf("einfo: no database info for %s", Database)
	}
	db := resp.Result.DBInfo[0]
	return DatabaseInfo{
		Name:        db.DBName,
		MenuName:    db.MenuName,
		Description: db.Description,
		Count:       db.Count,
		LastUpdate:  db.LastUpdate,
		Fields:      db.FieldList,
	}, nil
}

// FormatInfo writes a human-readable database summary to w.
func FormatInfo(info DatabaseInfo, w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n", info.Description, info.MenuName)
	fmt.Fprintf(w, "%s entries, last updated %s\n", info.Count, info.LastUpdate)
	if len(info.Fields) == 0 {
		return
	}
	fmt.Fprintln(w, "Available search fields:")
	for _, f := range info.Fields {
		fmt.Fprintf(w, "  [%s] %s | %s (%s terms)\n", f.Name, f.FullName, f.Description, f.TermCount)
	}
}

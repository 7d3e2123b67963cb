package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
)

var feedPaths = []string{"/feed", "/rss.xml", "/atom.xml", "/feed.xml", "/index.xml"}

type rss struct {
	Channel struct {
		Items []struct {
			Link string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomFeed struct {
	Entries []struct {
		Links []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

// discoverFeeds probes the curated RSS/Atom endpoints and parses whichever
// respond with 200, extracting per-item/entry permalinks as Candidates.
func (d *Discoverer) discoverFeeds(ctx context.Context, rootURL string) []Candidate {
	var out []Candidate
	for _, p := range feedPaths {
		cands, err := d.discoverFeed(ctx, joinPath(rootURL, p))
		if err != nil {
			continue
		}
		out = append(out, cands...)
	}
	return out
}

func (d *Discoverer) discoverFeed(ctx context.Context, feedURL string) ([]Candidate, error) {
	outcome, err := d.fetcher.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	if outcome.Status != 200 {
		return nil, fmt.Errorf("feed %s returned status %d", feedURL, outcome.Status)
	}

	var r rss
	if err := xml.Unmarshal(outcome.BodyBytes, &r); err == nil && len(r.Channel.Items) > 0 {
		out := make([]Candidate, 0, len(r.Channel.Items))
		for _, item := range r.Channel.Items {
			if item.Link == "" {
				continue
			}
			out = append(out, Candidate{URL: item.Link, Source: "feed", Priority: 0.6})
		}
		return out, nil
	}

	var a atomFeed
	if err := xml.Unmarshal(outcome.BodyBytes, &a); err == nil && len(a.Entries) > 0 {
		out := make([]Candidate, 0, len(a.Entries))
		for _, entry := range a.Entries {
			href := ""
			for _, l := range entry.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					href = l.Href
					break
				}
			}
			if href == "" {
				continue
			}
			out = append(out, Candidate{URL: href, Source: "feed", Priority: 0.6})
		}
		return out, nil
	}

	return nil, fmt.Errorf("feed %s: unrecognized format", feedURL)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/casegraph/internal/bootstrap"
	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/graph"
)

func projectCmd() *cobra.Command {
	var detect bool

	cmd := &cobra.Command{
		Use:   "project <case.json>",
		Short: "Write case records from a JSON file into the graph",
		Long: `Write one case record, or an array of them, into the configured graph
store. With --detect the correlation queries run for every projected case.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(args[0])
			if err != nil {
				return err
			}

			ctx, stop, cfg := setup(cmd)
			defer stop()

			client, closeGraph, err := bootstrap.OpenGraph(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeGraph()

			projector := graph.NewProjector(client)
			detector := graph.NewDetector(client, graph.WithHotspotMinCases(cfg.Graph.HotspotMinCases))

			var out []projectionView
			for _, rec := range records {
				proj, err := projector.ProjectDetailed(ctx, rec)
				if err != nil {
					return err
				}
				view := projectionView{
					CaseID:       rec.CaseID,
					CaseKey:      proj.CaseKey,
					PersonKeys:   proj.PersonKeys,
					LocationKey:  proj.LocationKey,
					EvidenceKeys: proj.EvidenceKeys,
					Failures:     proj.Failures,
				}
				if detect {
					r := newReportView(detector.Detect(ctx, proj.CaseKey, proj.CaseVertex))
					view.Report = &r
				}
				out = append(out, view)
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().BoolVar(&detect, "detect", false, "Run pattern detection after projecting")

	return cmd
}

func linkLocationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link-location <caseKey> <locationKey>",
		Short: "Create the OCCURRED_AT edge between a case and a location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop, cfg := setup(cmd)
			defer stop()

			client, closeGraph, err := bootstrap.OpenGraph(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeGraph()

			res := client.CreateCaseLocationEdge(ctx, args[0], args[1])
			if !res.OK() {
				return res.Err()
			}
			return printJSON(cmd, map[string]any{
				"edgeKey":  res.Key,
				"fallback": res.FellBack(),
			})
		},
	}
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <caseKey>",
		Short: "Run pattern detection for a stored case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop, cfg := setup(cmd)
			defer stop()

			client, closeGraph, err := bootstrap.OpenGraph(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeGraph()

			doc, err := client.Storage().GetVertex(ctx, common.CollectionCases, args[0])
			if err != nil {
				return fmt.Errorf("case %s: %w", args[0], err)
			}
			vertex, err := caseVertexFromDocument(doc)
			if err != nil {
				return err
			}
			vertex.Key = args[0]

			detector := graph.NewDetector(client, graph.WithHotspotMinCases(cfg.Graph.HotspotMinCases))
			return printJSON(cmd, newReportView(detector.Detect(ctx, args[0], vertex)))
		},
	}
}

func queryCmd() *cobra.Command {
	var (
		params map[string]string
		count  bool
	)

	cmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run an ad-hoc query against the graph store",
		Long: `Run an ad-hoc statement in the native language of the configured graph
store: SQL for postgres (named arguments as @name) or Cypher for neo4j
(arguments as $name). Rows are printed as JSON; with --count only the first
value of the first row is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop, cfg := setup(cmd)
			defer stop()

			client, closeGraph, err := bootstrap.OpenGraph(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeGraph()

			out, err := runQuery(ctx, client, args[0], params, count)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringToStringVar(&params, "arg", nil, "Query argument as name=value, repeatable")
	cmd.Flags().BoolVar(&count, "count", false, "Print a single number instead of rows")

	return cmd
}

func runQuery(ctx context.Context, client *graph.GraphClient, stmt string, params map[string]string, count bool) (any, error) {
	var args map[string]any
	if len(params) > 0 {
		args = make(map[string]any, len(params))
		for k, v := range params {
			args[k] = v
		}
	}

	if count {
		n, err := client.Count(ctx, stmt, args)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"count": n}, nil
	}
	return client.Query(ctx, stmt, args)
}

// readRecords accepts a single JSON object or an array of objects.
func readRecords(path string) ([]common.CaseRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content = bytes.TrimSpace(content)

	if len(content) > 0 && content[0] == '[' {
		var records []common.CaseRecord
		if err := json.Unmarshal(content, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return records, nil
	}

	var rec common.CaseRecord
	if err := json.Unmarshal(content, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []common.CaseRecord{rec}, nil
}

func caseVertexFromDocument(doc map[string]any) (common.CaseVertex, error) {
	var v common.CaseVertex
	raw, err := json.Marshal(doc)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}

type projectionView struct {
	CaseID       string      `json:"caseId"`
	CaseKey      string      `json:"caseKey"`
	PersonKeys   []string    `json:"personKeys,omitempty"`
	LocationKey  string      `json:"locationKey,omitempty"`
	EvidenceKeys []string    `json:"evidenceKeys,omitempty"`
	Failures     int         `json:"failures"`
	Report       *reportView `json:"report,omitempty"`
}

type reportView struct {
	CaseKey          string                   `json:"caseKey"`
	CaseID           string                   `json:"caseId"`
	SimilarCases     []map[string]any         `json:"similarCases"`
	RecurringPersons []common.RecurringPerson `json:"recurringPersons"`
	Hotspots         []common.Hotspot         `json:"hotspots"`
	Alert            *graph.Alert             `json:"alert,omitempty"`
	Errors           map[string]string        `json:"errors,omitempty"`
}

func newReportView(r graph.Report) reportView {
	view := reportView{
		CaseKey:          r.CaseKey,
		CaseID:           r.CaseID,
		SimilarCases:     r.SimilarCases,
		RecurringPersons: r.RecurringPersons,
		Hotspots:         r.Hotspots,
		Alert:            r.Alert,
	}
	if len(r.Errors) > 0 {
		view.Errors = make(map[string]string, len(r.Errors))
		for name, err := range r.Errors {
			view.Errors[name] = err.Error()
		}
	}
	return view
}

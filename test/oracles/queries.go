package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_scores_in_range",
			SQL: `SELECT id, risk_score, confidence_score FROM dispute_analyses
                  WHERE risk_score < 0 OR risk_score > 100
                     OR confidence_score < 0 OR confidence_score > 100`,
		},
		{
			Name: "O2_known_strategy",
			SQL: `SELECT id, strategy FROM dispute_analyses
                  WHERE strategy NOT IN ('ai-backed', 'rule-based')`,
		},
		{
			Name: "O3_audit_chain_linkage",
			SQL: `WITH chain AS (
                      SELECT id, booking_id, previous_hash,
                             LAG(event_hash) OVER (PARTITION BY booking_id ORDER BY id) AS expected_prev
                      FROM audit_events)
                  SELECT id, booking_id FROM chain
                  WHERE expected_prev IS NOT NULL AND previous_hash <> expected_prev`,
		},
		{
			Name: "O4_audit_genesis",
			SQL: `WITH chain AS (
                      SELECT id, previous_hash,
                             ROW_NUMBER() OVER (PARTITION BY booking_id ORDER BY id) AS pos
                      FROM audit_events)
                  SELECT id FROM chain WHERE pos = 1 AND previous_hash <> ''`,
		},
		{
			Name: "O5_evidence_dispute_linkage",
			SQL: `SELECT e.id FROM evidence_items e
                  JOIN disputes d ON d.id = e.dispute_id
                  WHERE d.booking_id <> e.booking_id`,
		},
		{
			Name: "O6_checklist_completion_timestamps",
			SQL: `SELECT item_id, booking_id FROM checklist_completions
                  WHERE status <> 'pending' AND completed_at IS NULL`,
		},
		{
			Name: "O7_analysis_summary_present",
			SQL: `SELECT id FROM dispute_analyses
                  WHERE evidence_summary IS NULL OR evidence_summary = 'null'::jsonb`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}

package cmd

import "testing"

func TestStatsOnEmptyStore(t *testing.T) {
	env := newTestEnv(t)

	out := env.run("stats")
	env.contains(out, "documents:      0")
	env.contains(out, "pending urls:   0")
}

func TestStatsReflectsSeededFrontier(t *testing.T) {
	env := newTestEnv(t)

	env.run("seed", "doj-foia", "https://www.justice.gov/foia/a", "https://www.justice.gov/foia/b")

	out := env.run("stats", "-o", "json")
	env.contains(out, `"pending_urls":2`)
	env.contains(out, `"documents":0`)
}

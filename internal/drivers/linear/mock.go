package linear

import "errors"

var errCreateFailed = errors.New("linear: issue creation failed")

// Canned fixtures returned when mock data is enabled. Shapes mirror real
// API responses so dashboard rendering is exercised end to end without a
// Linear workspace.

func mockTeams() []Team {
	return []Team{
		{ID: "team-ops", Key: "OPS", Name: "Operations"},
		{ID: "team-sec", Key: "SEC", Name: "Security"},
	}
}

func mockMembers() []Member {
	return []Member{
		{ID: "member-1", Name: "Dana Reyes", Email: "dana@example.com"},
		{ID: "member-2", Name: "Sam Okafor", Email: "sam@example.com"},
	}
}

func mockIssues() []Issue {
	return []Issue{
		{
			ID:         "issue-1",
			Identifier: "OPS-101",
			Title:      "Replace battery in loading dock door sensor",
			State:      "Todo",
			Assignee:   "Dana Reyes",
			URL:        "https://linear.app/example/issue/OPS-101",
		},
		{
			ID:         "issue-2",
			Identifier: "SEC-42",
			Title:      "Review weekend motion alerts for warehouse B",
			State:      "In Progress",
			Assignee:   "Sam Okafor",
			URL:        "https://linear.app/example/issue/SEC-42",
		},
	}
}

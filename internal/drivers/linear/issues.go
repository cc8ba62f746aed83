package linear

import "context"

// Team is a Linear team.
type Team struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Member is a Linear workspace member.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Issue is a Linear issue.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	State      string `json:"stateName"`
	Assignee   string `json:"assigneeName,omitempty"`
	URL        string `json:"url"`
}

// ListTeams returns all teams in the workspace.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	if c.useMock {
		return mockTeams(), nil
	}

	var result struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	}
	query := `query { teams { nodes { id key name } } }`
	if err := c.query(ctx, query, nil, &result); err != nil {
		return nil, err
	}
	return result.Teams.Nodes, nil
}

// ListMembers returns all workspace members.
func (c *Client) ListMembers(ctx context.Context) ([]Member, error) {
	if c.useMock {
		return mockMembers(), nil
	}

	var result struct {
		Users struct {
			Nodes []Member `json:"nodes"`
		} `json:"users"`
	}
	query := `query { users { nodes { id name email } } }`
	if err := c.query(ctx, query, nil, &result); err != nil {
		return nil, err
	}
	return result.Users.Nodes, nil
}

// ListIssues returns open issues for a team.
func (c *Client) ListIssues(ctx context.Context, teamID string) ([]Issue, error) {
	if c.useMock {
		return mockIssues(), nil
	}

	var result struct {
		Issues struct {
			Nodes []struct {
				ID         string `json:"id"`
				Identifier string `json:"identifier"`
				Title      string `json:"title"`
				URL        string `json:"url"`
				State      struct {
					Name string `json:"name"`
				} `json:"state"`
				Assignee *struct {
					Name string `json:"name"`
				} `json:"assignee"`
			} `json:"nodes"`
		} `json:"issues"`
	}

	query := `query Issues($teamId: ID) {
		issues(filter: { team: { id: { eq: $teamId } } }) {
			nodes { id identifier title url state { name } assignee { name } }
		}
	}`
	if err := c.query(ctx, query, map[string]any{"teamId": teamID}, &result); err != nil {
		return nil, err
	}

	issues := make([]Issue, 0, len(result.Issues.Nodes))
	for _, n := range result.Issues.Nodes {
		issue := Issue{
			ID:         n.ID,
			Identifier: n.Identifier,
			Title:      n.Title,
			State:      n.State.Name,
			URL:        n.URL,
		}
		if n.Assignee != nil {
			issue.Assignee = n.Assignee.Name
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// CreateIssue creates a new issue in a team and returns it.
func (c *Client) CreateIssue(ctx context.Context, teamID, title, description string) (*Issue, error) {
	if c.useMock {
		issue := mockIssues()[0]
		issue.Title = title
		return &issue, nil
	}

	var result struct {
		IssueCreate struct {
			Success bool `json:"success"`
			Issue   struct {
				ID         string `json:"id"`
				Identifier string `json:"identifier"`
				Title      string `json:"title"`
				URL        string `json:"url"`
			} `json:"issue"`
		} `json:"issueCreate"`
	}

	query := `mutation CreateIssue($teamId: String!, $title: String!, $description: String) {
		issueCreate(input: { teamId: $teamId, title: $title, description: $description }) {
			success
			issue { id identifier title url }
		}
	}`
	variables := map[string]any{
		"teamId":      teamID,
		"title":       title,
		"description": description,
	}
	if err := c.query(ctx, query, variables, &result); err != nil {
		return nil, err
	}
	if !result.IssueCreate.Success {
		return nil, errCreateFailed
	}

	return &Issue{
		ID:         result.IssueCreate.Issue.ID,
		Identifier: result.IssueCreate.Issue.Identifier,
		Title:      result.IssueCreate.Issue.Title,
		URL:        result.IssueCreate.Issue.URL,
	}, nil
}

package model

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectInProgress, ProjectCompleted:
		return true
	}
	return false
}

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	DueDate     *int64        `json:"due_date,omitempty"`
	Synced      bool          `json:"synced"`
	CreatedAt   int64         `json:"created_at"`
	UpdatedAt   int64         `json:"updated_at"`
}

// ProjectItem is a named requirement of a project. It is fulfilled when
// linked to an inventory item and missing otherwise.
type ProjectItem struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	InventoryItemID *string `json:"inventory_item_id"`
	Name            string  `json:"name"`
	IsFulfilled     bool    `json:"is_fulfilled"`
	Notes           string  `json:"notes,omitempty"`
	Synced          bool    `json:"synced"`
	CreatedAt       int64   `json:"created_at"`
	UpdatedAt       int64   `json:"updated_at"`
}

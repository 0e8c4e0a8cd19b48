package transport

type SignUpRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,strongpassword"`
	Role      string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileUpdateRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1"`
	Role      *string `json:"role"`
}

type CreateTaskRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Type        string   `json:"type" validate:"omitempty,oneof=FEATURE BUG CHORE IMPROVEMENT"`
	Attachments []string `json:"attachments"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1"`
	Description *string `json:"description" validate:"omitempty,min=1"`
	Status      *string `json:"status" validate:"omitempty,oneof=BACKLOG TO_DO IN_PROGRESS COMPLETED"`
}

type AssignTaskRequest struct {
	TaskID string `json:"taskId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type CommentRequest struct {
	Text string `json:"text" validate:"required"`
}

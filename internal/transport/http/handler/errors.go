package handler

const (
	errInternalServer     = "Internal server error"
	errScheduleNotFound   = "Schedule not found"
	errScheduleNotPending = "Only pending schedules can be cancelled"
	errInvalidRecurrence  = "Invalid recurrence expression"
)

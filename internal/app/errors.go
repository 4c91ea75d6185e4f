package app

import "fmt"

var (
	ErrNoTeachersSelected = fmt.Errorf("no teachers selected")
	ErrPermissionRequired = fmt.Errorf("sms permission is required")
	ErrUnknownTeacher     = fmt.Errorf("unknown teacher")
	ErrCampaignRunning    = fmt.Errorf("a campaign is already in progress")
)

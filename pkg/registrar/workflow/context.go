package workflow

import (
	"github.com/vecindia/asambleax/pkg/registrar/activity"
	"github.com/vecindia/asambleax/pkg/temporal"
)

type Context struct {
	TemporalClient  *temporal.Client
	ActivityContext *activity.Context
}

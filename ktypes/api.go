package ktypes

import (
	"fmt"
	"time"
)

var (
	ApiInst Api
)

// Api is the deployment hook: where config comes from, where stats go.
type Api interface {
	Stat(isError bool, event string, context string, extra string)
	ReadConfig(configPath string, configInterface interface{}) (interface{}, error)
	Serve() error
	Stop() error
}

// ChannelProcess is what metrics need to know about a running channel.
type ChannelProcess interface {
	Name() string
	PID() int
}

func TimeToStat(dt time.Duration) string {
	ms := 100 * int64(dt/(time.Millisecond*100))
	return fmt.Sprintf("%d", ms)
}

func Stat(isError bool, event string, context string, extra string) {
	if ApiInst == nil {
		return
	}
	ApiInst.Stat(isError, event, context, extra)
}

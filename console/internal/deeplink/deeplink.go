// Package deeplink builds dashboard discover URLs for alarms, stages and fields.
package deeplink

import (
	"strconv"
	"strings"
)

const discoverPrefix = "/app/kibana#/discover?_g=(refreshInterval:(display:Off,pause:!f,value:0)"

// Builder renders discover URLs against a dashboard base URL. The URL layout is
// the dashboard's own rison state and is reproduced verbatim.
type Builder struct {
	KibanaURL string
}

func New(kibanaURL string) Builder {
	return Builder{KibanaURL: strings.TrimRight(kibanaURL, "/")}
}

// Field links to documents of indexPattern where key matches value over the
// last 24h. An empty key searches value as lucene free text over the last hour.
func (b Builder) Field(indexPattern, key, value string) string {
	index := "'" + indexPattern + "'"

	var sb strings.Builder
	sb.WriteString(b.KibanaURL)
	sb.WriteString(discoverPrefix)

	if key != "" {
		sb.WriteString(",time:(from:now-24h,mode:quick,to:now))&_a=(columns:!(_source),filters:!(('$state':(store:appState)")
		sb.WriteString(",meta:(alias:!n,disabled:!f,index:" + index + ",key:" + key + ",negate:!f,params:(query:'" + value + "',type:phrase)")
		sb.WriteString(",type:phrase,value:'" + value + "'),query:(match:(" + key + ":(query:'" + value + "',type:phrase))))),index:")
		sb.WriteString(index + ",interval:auto,query:(language:lucene,query:''),sort:!('@timestamp',desc))")
		return sb.String()
	}

	sb.WriteString(",time:(from:now-1h,mode:quick,to:now))&_a=(columns:!(_source)")
	sb.WriteString(",index:" + index + ",interval:auto,query:(language:lucene,query:'\"" + value + "\"'),sort:!('@timestamp',desc))")
	return sb.String()
}

// CorrelationStage links to the alarm events recorded for one stage of an alarm.
func (b Builder) CorrelationStage(indexPattern, alarmID string, stage int) string {
	s := strconv.Itoa(stage)

	var sb strings.Builder
	sb.WriteString(b.KibanaURL)
	sb.WriteString(discoverPrefix)
	sb.WriteString(",time:(from:now-24h,mode:quick,to:now))&_a=(columns:!(_source),filters:!(('$state':(store:appState)")
	sb.WriteString(",meta:(alias:!n,disabled:!f,index:" + indexPattern + ",key:alarm_id,negate:!f,params:(query:" + alarmID + ",type:phrase)")
	sb.WriteString(",type:phrase,value:" + alarmID + "),query:(match:(alarm_id:(query:" + alarmID + ",type:phrase))))")
	sb.WriteString(",('$state':(store:appState),meta:(alias:!n,disabled:!f,index:" + indexPattern + ",key:stage,negate:!f")
	sb.WriteString(",params:(query:" + s + ",type:phrase),type:phrase,value:'" + s + "')")
	sb.WriteString(",query:(match:(stage:(query:" + s + ",type:phrase))))),index:" + indexPattern + ",interval:auto")
	sb.WriteString(",query:(language:lucene,parsed:(match_all:()),query:'*',suggestions:!()),sort:!('@timestamp',desc))")
	return sb.String()
}

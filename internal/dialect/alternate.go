package dialect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/the-proof-must-flow/internal/geo"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// decodeAlternate reads a semantic segment from the Android export:
// activities list, placeVisit confidence, activitySegment with E7 waypoints.
func decodeAlternate(index int, fields map[string]json.RawMessage) model.LocationEntry {
	e := model.LocationEntry{
		Index:    index,
		RawStart: str(fields["startTime"]),
		RawEnd:   str(fields["endTime"]),
	}
	e.StartTime = geo.ParseTime(e.RawStart)
	e.EndTime = geo.ParseTime(e.RawEnd)

	var activities []json.RawMessage
	if raw, ok := fields["activities"]; ok && json.Unmarshal(raw, &activities) == nil && len(activities) > 0 {
		activity := &model.Activity{Distance: number(fields["distance"])}
		for i, item := range activities {
			act, ok := object(item)
			if !ok {
				continue
			}
			if p, ok := act["probability"]; ok {
				activity.Probabilities = append(activity.Probabilities, model.Probability{
					Source: fmt.Sprintf("activities[%d]", i),
					Value:  number(p),
				})
			}
		}
		e.Activity = activity
	}

	if pv, ok := object(fields["placeVisit"]); ok {
		visit := &model.Visit{}
		if loc, ok := object(pv["location"]); ok {
			if c, ok := loc["locationConfidence"]; ok {
				visit.Level = &model.LevelField{Kind: model.LevelConfidence, Value: number(c)}
			}
		}
		e.Visit = visit
	}

	if seg, ok := object(fields["activitySegment"]); ok {
		e.Mode = &model.TravelMode{
			Label:     strings.ToLower(str(seg["activityType"])),
			Distance:  number(seg["distance"]),
			StartTime: geo.ParseTime(str(seg["startTime"])),
			EndTime:   geo.ParseTime(str(seg["endTime"])),
		}

		if wp, ok := object(seg["waypointPath"]); ok {
			var waypoints []json.RawMessage
			if json.Unmarshal(wp["waypoints"], &waypoints) == nil {
				e.HasPath = true
				e.Path = make([]model.PathPoint, 0, len(waypoints))
				for _, w := range waypoints {
					e.Path = append(e.Path, decodeWaypoint(w))
				}
			}
		}
	}

	return e
}

func decodeWaypoint(raw json.RawMessage) model.PathPoint {
	p := model.PathPoint{RawPoint: string(raw)}
	w, ok := object(raw)
	if !ok {
		return p
	}
	lat, latOK := number(w["latE7"]).Float()
	lng, lngOK := number(w["lngE7"]).Float()
	if latOK && lngOK {
		p.Point = geo.FromE7(lat, lng)
	}
	return p
}

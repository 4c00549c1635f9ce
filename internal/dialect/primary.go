package dialect

import (
	"bytes"
	"encoding/json"

	"github.com/Veraticus/the-proof-must-flow/internal/geo"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// decodePrimary reads an entry in the on-device timeline shape:
// activity/visit sub-records, geo-strings and an optional timelinePath.
func decodePrimary(index int, fields map[string]json.RawMessage) model.LocationEntry {
	e := model.LocationEntry{
		Index:    index,
		RawStart: str(fields["startTime"]),
		RawEnd:   str(fields["endTime"]),
	}
	e.StartTime = geo.ParseTime(e.RawStart)
	e.EndTime = geo.ParseTime(e.RawEnd)

	if raw, ok := fields["activity"]; ok {
		act, _ := object(raw)
		activity := &model.Activity{
			Distance: number(act["distanceMeters"]),
			From:     geo.ParseGeoString(str(act["start"])),
			To:       geo.ParseGeoString(str(act["end"])),
		}
		if p, ok := act["probability"]; ok {
			activity.Probabilities = append(activity.Probabilities, model.Probability{Source: "activity", Value: number(p)})
		}
		if tc, ok := object(act["topCandidate"]); ok {
			if p, ok := tc["probability"]; ok {
				activity.Probabilities = append(activity.Probabilities, model.Probability{Source: "activity.topCandidate", Value: number(p)})
			}
			e.Mode = &model.TravelMode{
				Label:     str(tc["type"]),
				Distance:  activity.Distance,
				StartTime: e.StartTime,
				EndTime:   e.EndTime,
			}
		}
		e.Activity = activity
	}

	if raw, ok := fields["visit"]; ok {
		vis, _ := object(raw)
		visit := &model.Visit{}
		if p, ok := vis["probability"]; ok {
			visit.Probabilities = append(visit.Probabilities, model.Probability{Source: "visit", Value: number(p)})
		}
		if tc, ok := object(vis["topCandidate"]); ok {
			if p, ok := tc["probability"]; ok {
				visit.Probabilities = append(visit.Probabilities, model.Probability{Source: "visit.topCandidate", Value: number(p)})
			}
		}
		if hl, ok := vis["hierarchyLevel"]; ok {
			visit.Level = &model.LevelField{Kind: model.LevelHierarchy, Value: number(hl)}
		}
		e.Visit = visit
	}

	if raw, ok := fields["timelinePath"]; ok {
		e.HasPath = true
		var nodes []json.RawMessage
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) && json.Unmarshal(raw, &nodes) == nil {
			e.Path = make([]model.PathPoint, 0, len(nodes))
			for _, node := range nodes {
				e.Path = append(e.Path, decodePathNode(node))
			}
		} else {
			e.PathMalformed = true
		}
	}

	return e
}

func decodePathNode(raw json.RawMessage) model.PathPoint {
	p := model.PathPoint{Timed: true}
	node, ok := object(raw)
	if !ok {
		p.RawPoint = string(raw)
		return p
	}
	p.RawPoint = str(node["point"])
	p.Point = geo.ParseGeoString(p.RawPoint)

	offset := number(node["durationMinutesOffsetFromStartTime"])
	p.RawOffset = offset.String()
	if v, ok := offset.Float(); ok {
		p.Offset = &v
	}
	return p
}

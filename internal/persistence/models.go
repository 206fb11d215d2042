/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package persistence

import (
	"time"

	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/history"
)

// eventRecord is the GORM model backing a persisted history.Event.
type eventRecord struct {
	ID           string `gorm:"column:id;primaryKey;size:36"`
	Seq          uint64 `gorm:"column:seq;index:idx_event_seq,sort:desc"`
	Timestamp    time.Time
	Type         string `gorm:"column:type;size:64;index"`
	Reason       string `gorm:"column:reason;type:text"`
	TriggeredBy  string `gorm:"column:triggered_by;size:253"`
	Namespace    string `gorm:"column:namespace;size:253;index"`
	ResourceName string `gorm:"column:resource_name;size:253"`
}

func (*eventRecord) TableName() string { return "history_events" }

func toEventRecord(e history.Event) eventRecord {
	return eventRecord{
		ID:           e.ID,
		Seq:          e.Seq,
		Timestamp:    e.Timestamp,
		Type:         string(e.Type),
		Reason:       e.Reason,
		TriggeredBy:  e.TriggeredBy,
		Namespace:    e.Namespace,
		ResourceName: e.ResourceName,
	}
}

func fromEventRecord(r eventRecord) history.Event {
	return history.Event{
		ID:           r.ID,
		Seq:          r.Seq,
		Timestamp:    r.Timestamp,
		Type:         history.EventType(r.Type),
		Reason:       r.Reason,
		TriggeredBy:  r.TriggeredBy,
		Namespace:    r.Namespace,
		ResourceName: r.ResourceName,
	}
}

// exemptionRecord is the GORM model backing a persisted exemption.Exemption.
type exemptionRecord struct {
	ID              string `gorm:"column:id;primaryKey;size:36"`
	Namespace       string `gorm:"column:namespace;size:253;index"`
	ResourceName    string `gorm:"column:resource_name;size:253"`
	DurationMinutes int32  `gorm:"column:duration_minutes"`
	Reason          string `gorm:"column:reason;type:text"`
	ApprovedBy      string `gorm:"column:approved_by;size:253"`
	CreatedAt       time.Time
	ExpiresAt       time.Time `gorm:"index"`
	Used            bool      `gorm:"column:used"`
	Owner           string    `gorm:"column:owner;size:512;index"`
}

func (*exemptionRecord) TableName() string { return "exemptions" }

func toExemptionRecord(e exemption.Exemption) exemptionRecord {
	return exemptionRecord{
		ID:              e.ID,
		Namespace:       e.Namespace,
		ResourceName:    e.ResourceName,
		DurationMinutes: e.DurationMinutes,
		Reason:          e.Reason,
		ApprovedBy:      e.ApprovedBy,
		CreatedAt:       e.CreatedAt,
		ExpiresAt:       e.ExpiresAt,
		Used:            e.Used,
		Owner:           e.Owner,
	}
}

func fromExemptionRecord(r exemptionRecord) exemption.Exemption {
	return exemption.Exemption{
		ID:              r.ID,
		Namespace:       r.Namespace,
		ResourceName:    r.ResourceName,
		DurationMinutes: r.DurationMinutes,
		Reason:          r.Reason,
		ApprovedBy:      r.ApprovedBy,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
		Used:            r.Used,
		Owner:           r.Owner,
	}
}

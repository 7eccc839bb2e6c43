package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
)

// PurgeConversation removes every key belonging to a conversation: its
// metadata, all message versions (both the stream copies and the version
// index) and its game sessions. Returns the number of keys deleted. Meant
// for the retention sweeper; callers are expected to have soft-deleted the
// conversation first.
func PurgeConversation(convID string, dryRun bool) (int, error) {
	if db == nil {
		return 0, notOpen()
	}
	n := 0
	del := func(key string) error {
		if dryRun {
			n++
			return nil
		}
		if err := DBDelete([]byte(key)); err != nil {
			return err
		}
		n++
		return nil
	}

	msgKeys, err := ListKeys("conv:" + convID + ":msg:")
	if err != nil {
		return n, err
	}
	seen := map[string]bool{}
	for _, k := range msgKeys {
		// resolve the message id so the version index goes with the row
		if v, err := GetKey(k); err == nil {
			var m models.Message
			if json.Unmarshal([]byte(v), &m) == nil && m.ID != "" && !seen[m.ID] {
				seen[m.ID] = true
				verKeys, err := ListKeys("version:msg:" + m.ID + ":")
				if err != nil {
					return n, err
				}
				for _, vk := range verKeys {
					if err := del(vk); err != nil {
						return n, err
					}
				}
			}
		}
		if err := del(k); err != nil {
			return n, err
		}
	}

	c, err := GetConversation(convID)
	if err == nil {
		gameKeys, err := ListKeys(fmt.Sprintf("game:%s:%s:", c.Kind, convID))
		if err != nil {
			return n, err
		}
		for _, gk := range gameKeys {
			parts := strings.Split(gk, ":")
			id := parts[len(parts)-1]
			if err := del("gameid:" + id); err != nil {
				return n, err
			}
			if err := del(gk); err != nil {
				return n, err
			}
		}
	}

	if err := del("conv:" + convID + ":meta"); err != nil {
		return n, err
	}
	logger.Info("conversation_purged", "conversation", convID, "keys", n, "dry_run", dryRun)
	return n, nil
}

// SweepTombstones removes message rows whose latest version is a tombstone
// older than cutoff (ns). Scans the version index; stops after maxRows
// messages when maxRows > 0. Returns the number of keys deleted.
func SweepTombstones(cutoff int64, maxRows int, dryRun bool) (int, error) {
	if db == nil {
		return 0, notOpen()
	}
	keys, err := ListKeys("version:msg:")
	if err != nil {
		return 0, err
	}

	// keys sort as version:msg:<id>:<vk>, so versions of one message are
	// adjacent and the last key of a run is the latest version
	type run struct {
		id   string
		keys []string
	}
	var runs []run
	for _, k := range keys {
		rest := strings.TrimPrefix(k, "version:msg:")
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			continue
		}
		id := rest[:i]
		if len(runs) == 0 || runs[len(runs)-1].id != id {
			runs = append(runs, run{id: id})
		}
		runs[len(runs)-1].keys = append(runs[len(runs)-1].keys, k)
	}

	deleted := 0
	purgedRows := 0
	for _, r := range runs {
		if maxRows > 0 && purgedRows >= maxRows {
			break
		}
		lastKey := r.keys[len(r.keys)-1]
		v, err := GetKey(lastKey)
		if err != nil {
			continue
		}
		var m models.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		if !m.Deleted || m.TS >= cutoff {
			continue
		}
		// delete all versions plus the conversation stream copies
		suffixes := make([]string, 0, len(r.keys))
		for _, vk := range r.keys {
			suffixes = append(suffixes, strings.TrimPrefix(vk, "version:msg:"+r.id+":"))
		}
		for i, vk := range r.keys {
			if !dryRun {
				if err := DBDelete([]byte(vk)); err != nil {
					return deleted, err
				}
				convKey := fmt.Sprintf("conv:%s:msg:%s", m.Conversation, suffixes[i])
				if err := DBDelete([]byte(convKey)); err != nil {
					return deleted, err
				}
			}
			deleted += 2
		}
		purgedRows++
	}
	if purgedRows > 0 {
		logger.Info("tombstones_swept", "messages", purgedRows, "keys", deleted, "dry_run", dryRun)
	}
	return deleted, nil
}

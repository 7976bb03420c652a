package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const saveDelay = 10 * time.Second

// ServerState holds what the bot learns while running. It currently remembers
// the volume chosen in each guild.
type ServerState struct {
	serverStateConfig     ServerStateConfig
	lock                  sync.RWMutex
	backupTimer           *time.Timer
	completeStateFilename string
}

func NewServerState(completeStateFilename string) (*ServerState, error) {
	serverState := &ServerState{
		completeStateFilename: completeStateFilename,
	}

	rawConfig, err := os.ReadFile(completeStateFilename)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(rawConfig, &serverState.serverStateConfig); err != nil {
			return nil, fmt.Errorf("unable to interpret state file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		logrus.Infof("Create default state file")
	default:
		return nil, fmt.Errorf("unable to read state file: %w", err)
	}
	if serverState.serverStateConfig.GuildVolumes == nil {
		serverState.serverStateConfig.GuildVolumes = make(map[string]int64)
	}

	return serverState, nil
}

func (ss *ServerState) GuildVolume(guildId string) (int64, bool) {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	volume, ok := ss.serverStateConfig.GuildVolumes[guildId]
	return volume, ok
}

func (ss *ServerState) SetGuildVolume(guildId string, volume int64) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	if current, ok := ss.serverStateConfig.GuildVolumes[guildId]; ok && current == volume {
		return
	}
	ss.serverStateConfig.GuildVolumes[guildId] = volume
	ss.scheduleSave()
}

func (ss *ServerState) scheduleSave() {
	if ss.backupTimer == nil {
		ss.backupTimer = time.AfterFunc(saveDelay, func() {
			ss.lock.Lock()
			defer ss.lock.Unlock()
			ss.save()
		})
	} else {
		ss.backupTimer.Reset(saveDelay)
	}
}

func (ss *ServerState) save() {
	logrus.Infof("Save state file: %s", ss.completeStateFilename)
	rawConfig, err := yaml.Marshal(&ss.serverStateConfig)
	if err != nil {
		logrus.Errorf("Unable to serialize state file: %v", err)
		return
	}
	if err = os.WriteFile(ss.completeStateFilename, rawConfig, 0660); err != nil {
		logrus.Errorf("Unable to save state file: %v", err)
	}
}

// FlushSave writes a pending change right away.
func (ss *ServerState) FlushSave() {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.backupTimer != nil {
		if ss.backupTimer.Stop() {
			ss.save()
		}
	}
}

type ServerStateConfig struct {
	GuildVolumes map[string]int64 `yaml:"guild_volumes"`
}

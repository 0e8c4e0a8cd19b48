package memory

import (
	"testing"

	"github.com/fastygo/tasktracker/repository/repotest"
)

func TestContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repotest.Stores {
		return repotest.Stores{Tasks: NewTaskRepository(), Users: NewUserRepository()}
	})
}

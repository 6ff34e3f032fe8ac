// Package partition serializa operações por chave (ex.: por partida) sem
// lock global: chaves diferentes nunca disputam o mesmo mutex.
package partition

import (
	"sync"

	"github.com/moby/locker"
)

// Mutex é um mutex por chave; a entrada da chave é liberada quando
// ninguém mais a usa.
type Mutex struct {
	l *locker.Locker
}

func New() *Mutex {
	return &Mutex{l: locker.New()}
}

// Lock bloqueia a chave e devolve a função de desbloqueio (idempotente)
func (m *Mutex) Lock(key string) (unlock func()) {
	m.l.Lock(key)
	var once sync.Once
	return func() {
		once.Do(func() { _ = m.l.Unlock(key) })
	}
}

package spin

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Roller выдаёт случайное число в [0, n).
type Roller interface {
	Int63n(n int64) (int64, error)
}

// CryptoRoller: Roller на crypto/rand. Исход спина нельзя предсказать по seed.
type CryptoRoller struct{}

// Int63n возвращает равномерное случайное число в [0, n).
func (CryptoRoller) Int63n(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, fmt.Errorf("ошибка генерации случайного числа: %w", err)
	}
	return v.Int64(), nil
}

// Wheel: колесо с весами.
type Wheel struct {
	prizes []Prize
	total  int64
}

// NewWheel создаёт колесо. Все веса должны быть положительными.
func NewWheel(prizes []Prize) (*Wheel, error) {
	if len(prizes) == 0 {
		return nil, fmt.Errorf("колесо без призов")
	}
	var total int64
	for _, p := range prizes {
		if p.Weight <= 0 {
			return nil, fmt.Errorf("приз %q: вес должен быть > 0", p.ID)
		}
		if p.Coins < 0 {
			return nil, fmt.Errorf("приз %q: отрицательный приз", p.ID)
		}
		total += p.Weight
	}
	return &Wheel{prizes: prizes, total: total}, nil
}

// Pick выбирает сектор по числу r из [0, total).
func (w *Wheel) Pick(r int64) Prize {
	for _, p := range w.prizes {
		if r < p.Weight {
			return p
		}
		r -= p.Weight
	}
	return w.prizes[len(w.prizes)-1]
}

// Roll крутит колесо.
func (w *Wheel) Roll(rnd Roller) (Prize, error) {
	r, err := rnd.Int63n(w.total)
	if err != nil {
		return Prize{}, err
	}
	return w.Pick(r), nil
}

// Prizes возвращает сектора колеса.
func (w *Wheel) Prizes() []Prize {
	return w.prizes
}

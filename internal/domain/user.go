package domain

import "time"

type User struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Avatar       string        `json:"avatar,omitempty"`
	Measurements *Measurements `json:"measurements,omitempty"`
	Favorites    []string      `json:"favorites"`
	History      []string      `json:"history"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Measurements are body measurements in centimetres and kilograms.
type Measurements struct {
	Height        float64  `json:"height"`
	Weight        float64  `json:"weight"`
	Bust          float64  `json:"bust"`
	Waist         float64  `json:"waist"`
	Hips          float64  `json:"hips"`
	ShoulderWidth *float64 `json:"shoulderWidth,omitempty"`
	ArmLength     *float64 `json:"armLength,omitempty"`
}

type UserStats struct {
	TotalOrders   int     `json:"totalOrders"`
	TotalSpent    float64 `json:"totalSpent"`
	FavoriteCount int     `json:"favoriteCount"`
	ARTriesCount  int     `json:"arTriesCount"`
}

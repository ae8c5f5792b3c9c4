package service

import "chase_bot/internal/helper"

// Bands — две чувствительности толеранса вокруг EMA. Entry (шире) решает,
// есть ли сигнал на вход; Trail (уже) режет зоны подтяжки стопа. Entry
// всегда больше Trail, иначе свежая позиция сразу попадает в зону выхода.
type Bands struct {
	Entry float64
	Trail float64
}

// EntryUpper — верхняя входная полоса: close выше неё — лонговый сигнал.
// Входные полосы не округляются: сравнение с целым close должно видеть
// дробную границу, округление съедает сигналы на самом краю.
func (b Bands) EntryUpper(ema float64) float64 { return (1 + b.Entry) * ema }

// EntryLower — нижняя входная полоса: close ниже неё — шортовый сигнал.
func (b Bands) EntryLower(ema float64) float64 { return (1 - b.Entry) * ema }

// TrailUpper — верхняя трейлинговая граница (longT1).
func (b Bands) TrailUpper(ema float64) float64 { return helper.RoundPrice((1 + b.Trail) * ema) }

// TrailLower — нижняя трейлинговая граница (shortT1).
func (b Bands) TrailLower(ema float64) float64 { return helper.RoundPrice((1 - b.Trail) * ema) }

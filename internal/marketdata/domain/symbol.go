package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 各资产类别的符号语法。台股为四位数字代码；美股为 1~5 个大写字母，
// 可带单字母股类后缀（如 BRK.B）；期货为 2~3 位商品代码加交割月字母与年份。
var (
	twEquityPattern = regexp.MustCompile(`^[0-9]{4}$`)
	usEquityPattern = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)
	futurePattern   = regexp.MustCompile(`^[A-Z]{2,3}[A-L][0-9]{1,2}$`)
)

// NormalizeSymbol 将原始符号规范化为资产标识。美股与期货符号统一转为大写，
// 台股代码不做任何改写。规范化是幂等的：规范形再次输入得到同一标识。
func NormalizeSymbol(class AssetClass, raw string) (AssetIdentifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return AssetIdentifier{}, NewError(KindInvalidSymbolFormat, AssetIdentifier{Class: class}, fmt.Errorf("empty symbol"))
	}

	switch class {
	case AssetClassTwEquity:
		if !twEquityPattern.MatchString(s) {
			return AssetIdentifier{}, invalidSymbol(class, raw)
		}
	case AssetClassUsEquity:
		s = strings.ToUpper(s)
		if !usEquityPattern.MatchString(s) {
			return AssetIdentifier{}, invalidSymbol(class, raw)
		}
	case AssetClassFuture:
		s = strings.ToUpper(s)
		if !futurePattern.MatchString(s) {
			return AssetIdentifier{}, invalidSymbol(class, raw)
		}
	default:
		return AssetIdentifier{}, NewError(KindInvalidSymbolFormat, AssetIdentifier{}, fmt.Errorf("unknown asset class %q", class))
	}

	return AssetIdentifier{Class: class, Symbol: s}, nil
}

func invalidSymbol(class AssetClass, raw string) *Error {
	return NewError(KindInvalidSymbolFormat, AssetIdentifier{Class: class, Symbol: raw},
		fmt.Errorf("symbol %q does not match %s grammar", raw, class))
}

// FutureDeliveryMonth 将台湾期交所月份代码（A..L）换算为月份
func FutureDeliveryMonth(code byte) (time.Month, bool) {
	if code < 'A' || code > 'L' {
		return 0, false
	}
	return time.Month(code - 'A' + 1), true
}

// FutureMonthCode 将月份换算为台湾期交所月份代码
func FutureMonthCode(month time.Month) (byte, bool) {
	if month < time.January || month > time.December {
		return 0, false
	}
	return byte('A' + month - 1), true
}

// ParseFutureSymbol 拆解规范化后的期货符号为商品代码、交割月与交割年。
// 年份为一到两位数字，换算到 2000 年代（"24" -> 2024）。
func ParseFutureSymbol(symbol string) (product string, month time.Month, year int, err error) {
	if !futurePattern.MatchString(symbol) {
		return "", 0, 0, invalidSymbol(AssetClassFuture, symbol)
	}

	i := len(symbol)
	for i > 0 && symbol[i-1] >= '0' && symbol[i-1] <= '9' {
		i--
	}
	yy, convErr := strconv.Atoi(symbol[i:])
	if convErr != nil {
		return "", 0, 0, invalidSymbol(AssetClassFuture, symbol)
	}

	monthCode := symbol[i-1]
	m, ok := FutureDeliveryMonth(monthCode)
	if !ok {
		return "", 0, 0, invalidSymbol(AssetClassFuture, symbol)
	}

	return symbol[:i-1], m, 2000 + yy, nil
}

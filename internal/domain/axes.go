/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package domain holds the planning model shared by the CLI, the desktop UI and the exporters:
// the eight planning axes with their step/item catalogue, mindmap progress and dashboard scores.
package domain

import (
	"fmt"
	"strings"
)

// AxisCode is the canonical client-side identifier of a planning axis.
type AxisCode string

const (
	Concept          AxisCode = "concept"
	RevenueForecast  AxisCode = "revenue_forecast"
	FundingPlan      AxisCode = "funding_plan"
	Location         AxisCode = "location"
	InteriorExterior AxisCode = "interior_exterior"
	Menu             AxisCode = "menu"
	Operation        AxisCode = "operation"
	Marketing        AxisCode = "marketing"
)

// Axis describes one axis for display.
type Axis struct {
	Code  AxisCode
	Name  string
	Color string
}

// axisTable is in display order; the mindmap places axes clockwise from the top in this order.
var axisTable = []Axis{
	{Concept, "コンセプト", "#0ea5e9"},
	{RevenueForecast, "収支予測", "#8b5cf6"},
	{FundingPlan, "資金計画", "#10b981"},
	{Location, "立地", "#f59e0b"},
	{InteriorExterior, "内装外装", "#ec4899"},
	{Menu, "メニュー", "#ef4444"},
	{Operation, "オペレーション", "#6366f1"},
	{Marketing, "販促", "#14b8a6"},
}

// Axes returns all axes in display order.
func Axes() []Axis {
	return append([]Axis(nil), axisTable...)
}

// LookupAxis returns the display data for a canonical code.
func LookupAxis(code AxisCode) (Axis, bool) {
	for _, a := range axisTable {
		if a.Code == code {
			return a, true
		}
	}
	return Axis{}, false
}

func (c AxisCode) Valid() bool {
	_, ok := LookupAxis(c)
	return ok
}

// Name returns the display name, or the code itself for unknown axes.
func (c AxisCode) Name() string {
	if a, ok := LookupAxis(c); ok {
		return a.Name
	}
	return string(c)
}

// backendAliases maps codes the backend has used over time onto canonical codes.
var backendAliases = map[string]AxisCode{
	"funds":      FundingPlan,
	"compliance": FundingPlan,
	"equipment":  InteriorExterior,
}

// legacyNames covers axis names from earlier backend releases.
var legacyNames = map[string]AxisCode{
	"集客": Marketing,
	"設備": InteriorExterior,
}

// Canonical resolves a backend code, canonical code or display name (current or legacy)
// to the canonical axis code.
func Canonical(codeOrName string) (AxisCode, bool) {
	s := strings.TrimSpace(codeOrName)
	if s == "" {
		return "", false
	}
	if c := AxisCode(s); c.Valid() {
		return c, true
	}
	if c, ok := backendAliases[s]; ok {
		return c, true
	}
	for _, a := range axisTable {
		if a.Name == s {
			return a.Code, true
		}
	}
	if c, ok := legacyNames[s]; ok {
		return c, true
	}
	return "", false
}

// BackendCode is the code the backend currently uses for the axis.
func (c AxisCode) BackendCode() string {
	if c == FundingPlan {
		return "funds"
	}
	return string(c)
}

// Item is a leaf of the catalogue; each one maps to a deep-dive card on the backend.
type Item struct {
	ID    string
	Title string
}

type Step struct {
	ID    string
	Name  string
	Items []Item
}

// NodeID builds the mindmap node identifier "<axis>_<step>_<item>".
func NodeID(axis AxisCode, stepID, itemID string) string {
	return fmt.Sprintf("%s_%s_%s", axis, stepID, itemID)
}

// ParseNodeID splits a node id built by NodeID. Axis codes may contain underscores, so the
// axis is matched against the known codes first.
func ParseNodeID(id string) (axis AxisCode, stepID, itemID string, ok bool) {
	for _, a := range axisTable {
		prefix := string(a.Code) + "_"
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		rest := id[len(prefix):]
		i := strings.IndexByte(rest, '_')
		if i <= 0 || i == len(rest)-1 {
			return "", "", "", false
		}
		return a.Code, rest[:i], rest[i+1:], true
	}
	return "", "", "", false
}

// Steps returns the step/item catalogue of an axis; nil for unknown axes.
func Steps(axis AxisCode) []Step {
	return catalogue[axis]
}

// FindItem returns the catalogue entry behind a node id.
func FindItem(nodeID string) (Axis, Step, Item, bool) {
	code, stepID, itemID, ok := ParseNodeID(nodeID)
	if !ok {
		return Axis{}, Step{}, Item{}, false
	}
	axis, _ := LookupAxis(code)
	for _, s := range catalogue[code] {
		if s.ID != stepID {
			continue
		}
		for _, it := range s.Items {
			if it.ID == itemID {
				return axis, s, it, true
			}
		}
	}
	return Axis{}, Step{}, Item{}, false
}

func items(pairs ...string) []Item {
	out := make([]Item, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Item{ID: pairs[i], Title: pairs[i+1]})
	}
	return out
}

func steps(s1, s2, s3 []Item) []Step {
	return []Step{
		{ID: "step1", Name: "STEP1", Items: s1},
		{ID: "step2", Name: "STEP2", Items: s2},
		{ID: "step3", Name: "STEP3", Items: s3},
	}
}

var catalogue = map[AxisCode][]Step{
	Concept: steps(
		items("1-1", "動機・世界観", "1-2", "ターゲット", "1-3", "コア価値", "1-4", "店舗タイプ"),
		items("2-1", "競合分析", "2-2", "提供体験", "2-3", "店舗の個性", "2-4", "顧客との関係性"),
		items("3-1", "提供価値の整合性", "3-2", "メッセージ", "3-3", "未来への展望"),
	),
	RevenueForecast: steps(
		items("1", "客単価（昼）", "2", "客単価（夜）", "3", "席数", "4", "原価率目標", "5", "営業日数"),
		items("6", "営業時間（昼）", "7", "営業時間（夜）", "8", "回転率（昼）", "9", "回転率（夜）", "10", "オーナー報酬"),
		items("11", "人件費", "12", "家賃", "13", "光熱費", "14", "人件費率", "15", "販管費率"),
	),
	FundingPlan: steps(
		items("1", "自己資金", "2", "内装・設備費", "3", "リース活用", "4", "敷金・保証金"),
		items("5", "販促・広告費", "6", "運転資金", "7", "運転資金月数", "8", "運転資金総額"),
		items("9", "初期投資総額", "10", "不足資金", "11", "借入希望先", "12", "資金調達目標"),
	),
	Location: steps(
		items("1", "ターゲットエリア", "2", "家賃目安", "3", "理想の坪数", "4", "ターゲット商圏"),
		items("5", "エリア環境", "6", "通行量/視認性", "7", "アクセス手段", "8", "契約条件"),
		items("9", "時間帯別需要", "10", "競合優位性", "11", "契約リスク", "12", "最終エリア決定"),
	),
	InteriorExterior: steps(
		items("1", "デザインテーマ", "2", "キーカラー", "3", "ファサード", "4", "ゾーニング"),
		items("5", "厨房機器", "6", "照明", "7", "家具・什器", "8", "看板・サイン"),
		items("9", "予算配分", "10", "施工業者選定", "11", "参考イメージ", "12", "デザイン要望書"),
	),
	Menu: steps(
		items("1", "看板メニュー", "2", "メニュー構成比", "3", "品数・カテゴリ", "4", "価格帯"),
		items("5", "仕入れ・食材", "6", "原価率設定", "7", "ドリンク戦略", "8", "季節性・更新"),
		items("9", "調理効率", "10", "厨房整合性", "11", "メニューブック", "12", "AI模擬来店"),
	),
	Operation: steps(
		items("1", "サービススタイル", "2", "お客様の流れ", "3", "ピーク時対応", "4", "決済方法"),
		items("5", "調理オペ", "6", "人員構成", "7", "スタッフ育成", "8", "顧客満足度"),
		items("9", "トラブル対応", "10", "衛生管理", "11", "在庫管理", "12", "閉店後作業"),
	),
	Marketing: steps(
		items("1", "メディア選定", "2", "MEO対策", "3", "SNS運用", "4", "オープニング"),
		items("5", "グルメサイト", "6", "リピーター施策", "7", "写真・クリエ", "8", "アナログ販促"),
		items("9", "販促カレンダー", "10", "販促予算", "11", "発信ルーティン", "12", "プレスリリース"),
	),
}

// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 sriflow 测试的共享工具。

# 子包

  - testutil/fixtures: 测试数据工厂，提供预置情感向量（高强度、中性、
    任务成功/失败常量）、策略增量与交替对话，以及统一的起始时间 FixedTime

# 使用示例

	v := fixtures.HighIntensityAffect(fixtures.FixedTime)
	turns := fixtures.Conversation(10)
*/
package testutil

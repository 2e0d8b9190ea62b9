// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 context 实现 SRI 流水线中的文本转换阶段。

# 概述

Transformer 把多轮对话裁剪到最近的若干轮 (Strip)，渲染为
"role: content" 行，并在其后追加一个 "## Relevant Memories:"
记忆块 (Inject)。前后两份文本使用同一个 token 计数器统计，
ReductionPercentage 据此给出节省比例。

# 核心模型

  - Transformer：Strip / Render / Parse / Inject / EstimateTokens
  - MemoryLine：单行记忆压缩形式 "#mem: <context>-<outcome> → <description>"
    的结构化表示，配合 ValidateMemoryLine / ParseMemoryLine 使用
  - InjectionSummary：面向日志的注入摘要

# 与其他包协同

agent/sri 流水线先调用 Strip 与 Render 得到召回查询，再把
agent/memory 返回的召回结果交给 Inject。计数器来自 llm/tokenizer。
*/
package context
